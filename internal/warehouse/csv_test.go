package warehouse

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionsCSV = `user_id,session_id,experiment_id,variant,event_date,is_experiment_period,has_impression,has_click,has_add_to_cart,has_purchase,revenue
u1,s1,exp_checkout,control,2024-03-01,true,1,1,1,1,25.50
u2,s2,exp_checkout,treatment,2024-03-02,true,1,0,0,0,
u3,s3,exp_checkout,treatment,2024-02-20,false,0,0,0,0,0
`

func TestReadSessionsCSV(t *testing.T) {
	facts, err := ReadSessionsCSV(strings.NewReader(sessionsCSV))
	require.NoError(t, err)
	require.Len(t, facts, 3)

	assert.Equal(t, "u1", facts[0].UserID)
	assert.Equal(t, day(1), facts[0].EventDate)
	assert.True(t, facts[0].Purchase)
	assert.True(t, facts[0].Revenue.Equal(decimal.RequireFromString("25.5")))

	assert.True(t, facts[1].Impression)
	assert.False(t, facts[1].Click)
	assert.True(t, facts[1].Revenue.IsZero())

	assert.False(t, facts[2].ExperimentPeriod)
}

func TestReadSessionsCSV_ColumnOrder(t *testing.T) {
	in := "variant,experiment_id,user_id,session_id,event_date,is_experiment_period,has_impression,has_click,has_add_to_cart,has_purchase,revenue\n" +
		"control,exp_a,u1,s1,2024-03-05,1,1,1,0,0,\n"

	facts, err := ReadSessionsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "control", facts[0].Variant)
	assert.Equal(t, "exp_a", facts[0].ExperimentID)
	assert.True(t, facts[0].Click)
}

func TestReadSessionsCSV_MissingColumn(t *testing.T) {
	in := "user_id,session_id,experiment_id,variant,event_date\nu1,s1,exp,control,2024-03-01\n"

	_, err := ReadSessionsCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "csv", se.Relation)
	assert.Equal(t, "is_experiment_period", se.Column)
}

func TestReadSessionsCSV_BadValues(t *testing.T) {
	header := "user_id,session_id,experiment_id,variant,event_date,is_experiment_period,has_impression,has_click,has_add_to_cart,has_purchase,revenue\n"
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"date", "u1,s1,exp,control,03/01/2024,1,1,1,1,1,10\n", "line 2"},
		{"flag", "u1,s1,exp,control,2024-03-01,maybe,1,1,1,1,10\n", "is_experiment_period"},
		{"revenue", "u1,s1,exp,control,2024-03-01,1,1,1,1,1,ten\n", "revenue"},
		{"variant", "u1,s1,exp,,2024-03-01,1,1,1,1,1,10\n", "variant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSessionsCSV(strings.NewReader(header + tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadSessionsCSV_Empty(t *testing.T) {
	_, err := ReadSessionsCSV(strings.NewReader(""))
	assert.Error(t, err)
}
