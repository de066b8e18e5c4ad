package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "hybrid-auth:lockout:until:alice", (&Redis{prefix: "hybrid-auth"}).Key("lockout", "until", "alice"))
	assert.Equal(t, "ratelimit:login:1.2.3.4", (&Redis{}).Key("ratelimit", "login:1.2.3.4"))
}
