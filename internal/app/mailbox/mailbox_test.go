package mailbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinezdelprenois/meshbuilder/internal/domain/mesh"
)

func batch(seq uint64) *mesh.Batch {
	return &mesh.Batch{Seq: seq}
}

func TestMailbox_TakeIfPresent_Empty(t *testing.T) {
	m := New()

	got, ok := m.TakeIfPresent()
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMailbox_LastWriterWins(t *testing.T) {
	m := New()

	m.Publish(batch(1))
	m.Publish(batch(2))
	m.Publish(batch(3))

	got, ok := m.TakeIfPresent()
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.Seq)

	// Consumed: the slot is empty again.
	_, ok = m.TakeIfPresent()
	assert.False(t, ok)

	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(2), stats.Dropped)
}

func TestMailbox_AtMostOnceConsumption(t *testing.T) {
	m := New()

	m.Publish(batch(7))

	first, ok := m.TakeIfPresent()
	require.True(t, ok)
	assert.Equal(t, uint64(7), first.Seq)

	second, ok := m.TakeIfPresent()
	assert.False(t, ok)
	assert.Nil(t, second)
}

func TestMailbox_NilPublishIgnored(t *testing.T) {
	m := New()

	m.Publish(nil)

	_, ok := m.TakeIfPresent()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), m.Stats().Published)
}

func TestMailbox_ClearFlag_Idempotent(t *testing.T) {
	m := New()

	assert.False(t, m.TakeClear())

	// N requests before the next take collapse to one.
	m.RequestClear()
	m.RequestClear()
	m.RequestClear()

	assert.True(t, m.TakeClear())
	assert.False(t, m.TakeClear())
}

func TestMailbox_Drain(t *testing.T) {
	m := New()

	m.Publish(batch(1))
	m.RequestClear()
	m.Drain()

	_, ok := m.TakeIfPresent()
	assert.False(t, ok)
	assert.False(t, m.TakeClear())
}

func TestMailbox_ConcurrentPublish(t *testing.T) {
	m := New()

	const publishers = 8
	const perPublisher = 1000

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				m.Publish(batch(uint64(p*perPublisher + i + 1)))
			}
		}(p)
	}

	// Consume concurrently; each take must return a batch at most once.
	taken := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < publishers*perPublisher; i++ {
			if _, ok := m.TakeIfPresent(); ok {
				taken++
			}
		}
	}()

	wg.Wait()
	<-done

	stats := m.Stats()
	assert.Equal(t, uint64(publishers*perPublisher), stats.Published)

	// Every published batch was either taken, dropped, or is still staged.
	staged := 0
	if _, ok := m.TakeIfPresent(); ok {
		staged = 1
	}
	assert.Equal(t, int(stats.Published), taken+int(stats.Dropped)+staged)
}
