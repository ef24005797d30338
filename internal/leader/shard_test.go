package leader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

func TestShardIDForIsStable(t *testing.T) {
	a := ShardIDFor("component-1", 8)
	b := ShardIDFor("component-1", 8)
	assert.Equal(t, a, b)
}

func TestShardIDForWithinRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := ShardIDFor("component-x", 4)
		assert.Less(t, uint32(id), uint32(4))
	}
}

func TestAdvisoryLockIDDistinctPerShard(t *testing.T) {
	seen := make(map[int64]bool)
	for i := uint32(0); i < 16; i++ {
		id := AdvisoryLockID(ShardID(i))
		assert.False(t, seen[id], "shard %d collided with a previous shard's lock id", i)
		seen[id] = true
	}
}

func TestNewManagerBuildsShardScopedElectors(t *testing.T) {
	m := NewManager(ManagerConfig{InstanceID: "node-1", ShardCount: 3})
	for shard, e := range m.electors {
		assert.Equal(t, shard, e.Shard())
		assert.Equal(t, AdvisoryLockID(shard), e.lockID)
	}
}

func TestManagerOwnsDefaultsFalseForUnknownShard(t *testing.T) {
	m := &Manager{shardCount: 4, electors: map[ShardID]*Elector{}}
	assert.False(t, m.Owns(ShardID(99)))
}

func TestManagerRouteReturnsInvalidShardIdWhenNotOwned(t *testing.T) {
	e := NewElector(Config{InstanceID: "node-1"})
	m := &Manager{shardCount: 2, electors: map[ShardID]*Elector{0: e, 1: e}}

	_, err := m.Route("some-component")
	var shardErr *golemerr.Error
	assert := assert.New(t)
	assert.ErrorAs(err, &shardErr)
	assert.Equal(golemerr.TypeInvalidShardId, shardErr.Type)
}

func TestManagerRouteSucceedsWhenOwned(t *testing.T) {
	shard := ShardIDFor("owned-component", 1)
	e := NewElector(Config{InstanceID: "node-1"})
	e.isLeader = true
	m := &Manager{shardCount: 1, electors: map[ShardID]*Elector{shard: e}}

	got, err := m.Route("owned-component")
	assert.NoError(t, err)
	assert.Equal(t, shard, got)
}
