package analysis

// Recommendation is the terminal label of a readout.
type Recommendation string

const (
	Ship     Recommendation = "Ship"
	Hold     Recommendation = "Hold"
	Continue Recommendation = "Continue"
)

// Decision is the recommendation with the evidence it was derived from.
type Decision struct {
	Recommendation Recommendation `json:"recommendation" yaml:"recommendation"`
	Reason         string         `json:"reason" yaml:"reason"`
	Primary        ReadoutRow     `json:"primary" yaml:"primary"`
	UserSRM        SRMResult      `json:"user_srm" yaml:"user_srm"`
	SessionSRM     SRMResult      `json:"session_srm" yaml:"session_srm"`
	Notes          []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Decide applies the decision rule. Only the user-level SRM can gate the
// outcome; the session-level result is carried as a note.
func Decide(primary ReadoutRow, userSRM, sessionSRM SRMResult) Decision {
	d := Decision{Primary: primary, UserSRM: userSRM, SessionSRM: sessionSRM}
	if sessionSRM.Status == StatusFlag {
		d.Notes = append(d.Notes, "session-level SRM flagged: "+SessionSRMNote)
	}

	switch {
	case userSRM.Status == StatusFlag:
		d.Recommendation = Hold
		d.Reason = "user-level sample ratio mismatch; randomization is not trustworthy"
	case userSRM.Status == StatusOK && primary.Favorable():
		d.Recommendation = Ship
		d.Reason = "primary metric CI excludes zero in the favorable direction and user-level SRM is OK"
	default:
		d.Recommendation = Continue
		d.Reason = "primary metric is inconclusive"
		switch {
		case !primary.Computable():
			d.Notes = append(d.Notes, "primary metric is non-computable: "+primary.Reason)
		case primary.Unfavorable():
			d.Reason = "primary metric regressed"
			d.Notes = append(d.Notes, "primary metric CI excludes zero in the unfavorable direction")
		}
		if userSRM.Status == StatusNA {
			d.Notes = append(d.Notes, "user-level SRM is non-computable")
		}
	}
	return d
}
