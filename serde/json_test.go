package serde_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/serde"
)

type titled interface{ Title() string }

type issueCreated struct {
	Number int64      `json:"number"`
	Name   string     `json:"title"`
	Due    *time.Time `json:"due,omitempty"`
}

func (evt *issueCreated) Title() string { return evt.Name }

func TestJSON(t *testing.T) {
	due := time.Date(2022, 9, 6, 22, 58, 0, 0, time.UTC)
	value := &issueCreated{Number: 1, Name: "title1", Due: &due}

	s := serde.NewJSON(func() *issueCreated { return new(issueCreated) })

	data, err := s.Serialize(value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":1,"title":"title1","due":"2022-09-06T22:58:00Z"}`, string(data))

	got, err := s.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	_, err = s.Deserialize([]byte(`{"number":"one"}`))
	assert.Error(t, err)
}

func TestJSON_InterfaceTarget(t *testing.T) {
	s := serde.NewJSONDeserializer(func() titled { return new(issueCreated) })

	got, err := s.Deserialize([]byte(`{"number":2,"title":"title2"}`))
	require.NoError(t, err)
	assert.Equal(t, &issueCreated{Number: 2, Name: "title2"}, got)
	assert.Equal(t, "title2", got.Title())
}
