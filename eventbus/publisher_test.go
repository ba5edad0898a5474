package eventbus

import (
	"context"
	"testing"
	"time"

	"matchcore/book"
)

func TestPublishFuncInvokesOnErrWhenBrokerUnreachable(t *testing.T) {
	p := NewPublisher([]string{"127.0.0.1:1"}, "trades")
	defer p.Close()

	errCh := make(chan error, 1)
	publish := p.PublishFunc(func(err error) { errCh <- err })

	publish(book.Trade{BuyOrderID: "b", SellOrderID: "s", Symbol: "SIM", Size: 1, Price: 1, Timestamp: 1})

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected a connection error against an unreachable broker")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for publish failure")
	}
}

func TestPublishRespectsContextDeadline(t *testing.T) {
	p := NewPublisher([]string{"127.0.0.1:1"}, "trades")
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, book.Trade{Symbol: "SIM", Size: 1, Price: 1})
	if err == nil {
		t.Fatalf("expected publish against an unreachable broker to fail")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected publish to give up near the 50ms deadline, took %s", elapsed)
	}
}
