package content

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories/memory"
)

func TestOnChangeCoalescesBurst(t *testing.T) {
	c, err := newCore(newDeps(memory.New()))
	require.NoError(t, err)
	var w watch
	w.start(context.Background())
	defer w.stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := c.onChange(&w, func() string { return domain.SectionAbout }, func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	})

	change := domain.Change{Table: domain.TableMilestones, Op: domain.ChangeUpdate}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(change)
	}()
	<-started
	for i := 0; i < 5; i++ {
		fn(change)
	}
	close(release)
	<-done
	require.Equal(t, int32(2), calls.Load())

	fn(change)
	require.Equal(t, int32(3), calls.Load())
}

func TestOnChangeSkipsStoppedWatch(t *testing.T) {
	c, err := newCore(newDeps(memory.New()))
	require.NoError(t, err)
	var w watch
	w.start(context.Background())
	w.stop()

	var calls atomic.Int32
	fn := c.onChange(&w, func() string { return domain.SectionAbout }, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	fn(domain.Change{Table: domain.TableMilestones})
	fn(domain.Change{Table: domain.TableMilestones})
	require.Zero(t, calls.Load())
}
