package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/rickgao/mediaroute/internal/model"
	"github.com/rickgao/mediaroute/internal/router"
)

func TestThrottler_DrivesSender(t *testing.T) {
	defer goleak.VerifyNone(t)

	var sender *router.Sender
	th := New(20*time.Millisecond, func() error { return sender.Flush() }, nil)
	sender = router.NewSender(router.DefaultConfig(), th, nil, nil)

	var mu sync.Mutex
	var batches [][]string
	sender.SetDeliverFunc(func(routeID string, msgs []model.RouteMessage) error {
		texts := make([]string, len(msgs))
		for i, m := range msgs {
			texts[i] = m.Text()
		}
		mu.Lock()
		batches = append(batches, texts)
		mu.Unlock()
		return nil
	})

	if err := th.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sender.SendText("r1", "A")
	sender.SendText("r1", "B")
	sender.Listen("r1")
	sender.SendText("r1", "C")

	time.Sleep(100 * time.Millisecond)
	stopThrottler(t, th)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1 coalesced batch", len(batches))
	}
	if len(batches[0]) != 3 || batches[0][0] != "A" || batches[0][2] != "C" {
		t.Errorf("batch = %v, want [A B C]", batches[0])
	}
}
