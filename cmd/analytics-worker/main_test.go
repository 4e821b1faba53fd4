package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

type recordingCloser struct {
	name  string
	err   error
	order *[]string
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestCloseAllReversesOrderAndCombinesErrors(t *testing.T) {
	var order []string
	err := closeAll([]closer{
		recordingCloser{name: "redis", order: &order},
		recordingCloser{name: "pubsub", err: errors.New("pubsub"), order: &order},
		recordingCloser{name: "bigquery", err: errors.New("bigquery"), order: &order},
	})

	assert.Equal(t, []string{"bigquery", "pubsub", "redis"}, order)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestCloseAllEmpty(t *testing.T) {
	assert.NoError(t, closeAll(nil))
}
