package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_book/internal/engine"
)

func testConfig(driver string) engine.Config {
	c := engine.DefaultConfig()
	c.StoreDriver = driver
	return c
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), testConfig(engine.StoreMemory), nil)
	require.NoError(t, err)
	_, ok := s.(*Memory)
	assert.True(t, ok)
	assert.NoError(t, s.Close())
}
