package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRecordMessage(t *testing.T) {
	t.Run("known roles map to schema messages", func(t *testing.T) {
		cases := []struct {
			role string
			want schema.RoleType
		}{
			{"user", schema.User},
			{"assistant", schema.Assistant},
			{"system", schema.System},
			{"tool", schema.Tool},
		}
		for _, tc := range cases {
			rec := &MessageRecord{Role: tc.role, Content: "x", ToolCallID: "call_1"}
			msg, err := rec.Message()
			require.NoError(t, err, tc.role)
			assert.Equal(t, tc.want, msg.Role)
			assert.Equal(t, "x", msg.Content)
		}
	})

	t.Run("unknown role is a data integrity error", func(t *testing.T) {
		rec := &MessageRecord{ID: "m1", Role: "moderator", Content: "x"}
		msg, err := rec.Message()
		assert.Nil(t, msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "moderator")
	})
}

func TestEvaluationFailed(t *testing.T) {
	eval := Evaluation{
		MetricGroundedness: {Score: 2, Result: ResultFail},
		MetricCoherence:    {Score: 4, Result: ResultPass},
		MetricRelevance:    {Error: "scorer timeout"},
	}

	failed := eval.Failed()

	assert.Len(t, failed, 1)
	assert.Contains(t, failed, MetricGroundedness)
}
