package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	evt := EnrollmentCreated{
		EnrollmentID: "enr_1",
		OrderID:      "order_1",
		UserID:       "u1",
		CourseID:     "c1",
		AmountPaid:   "999.00",
		Currency:     "INR",
		Source:       "webhook",
		EnrolledAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	body, err := Encode(EnrollmentCreatedPattern, evt)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "enrollment.created", got["pattern"])
	data := got["data"].(map[string]any)
	assert.Equal(t, "enr_1", data["enrollmentId"])
	assert.Equal(t, "999.00", data["amountPaid"])
	assert.NotContains(t, got, "id")
}

func TestEncode_Unmarshalable(t *testing.T) {
	_, err := Encode("x", make(chan int))
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), EnrollmentCreatedPattern, nil))
}
