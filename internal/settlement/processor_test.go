package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestProcessor_Submit(t *testing.T) {
	engine, st := newTestEngine(t)
	userID := createUser(t, st, 10000)

	p := NewProcessor(engine, 1, testLogger())
	p.Start()
	defer p.Stop()

	res, err := p.Submit(context.Background(), buy(userID, "AAPL", 10, 150))
	if err != nil {
		t.Fatalf("expected trade to succeed, got %v", err)
	}
	if !res.TotalAmount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected total 1500, got %s", res.TotalAmount)
	}
	if !res.Balance.Equal(decimal.NewFromInt(8500)) {
		t.Errorf("expected balance 8500, got %s", res.Balance)
	}
}

func TestProcessor_ConcurrentSameUser(t *testing.T) {
	engine, st := newTestEngine(t)
	userID := createUser(t, st, 10000)

	p := NewProcessor(engine, 5, testLogger())
	p.Start()
	defer p.Stop()

	const numTrades = 10
	results := make(chan error, numTrades)

	for i := 0; i < numTrades; i++ {
		go func() {
			_, err := p.Submit(context.Background(), buy(userID, "AAPL", 1, 100))
			results <- err
		}()
	}

	successCount := 0
	for i := 0; i < numTrades; i++ {
		if err := <-results; err == nil {
			successCount++
		} else {
			t.Errorf("trade failed: %v", err)
		}
	}
	if successCount != numTrades {
		t.Errorf("expected %d successful trades, got %d", numTrades, successCount)
	}

	if got := mustBalance(t, st, userID); !got.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("race condition detected: expected balance 9000, got %s", got)
	}
	holdings, _ := st.ListHoldings(context.Background(), userID)
	if len(holdings) != 1 || holdings[0].Quantity != numTrades {
		t.Errorf("race condition detected: expected quantity %d, got %+v", numTrades, holdings)
	}
}

func TestProcessor_ConcurrentDifferentUsers(t *testing.T) {
	engine, st := newTestEngine(t)

	p := NewProcessor(engine, 5, testLogger())
	p.Start()
	defer p.Stop()

	const users = 5
	const tradesPerUser = 10
	userIDs := make([]int64, users)
	for i := range userIDs {
		id, err := st.CreateAccount(context.Background(), fmt.Sprintf("user%d", i), decimal.NewFromInt(10000))
		if err != nil {
			t.Fatalf("create account: %v", err)
		}
		userIDs[i] = id
	}

	results := make(chan error, users*tradesPerUser)
	for _, userID := range userIDs {
		for i := 0; i < tradesPerUser; i++ {
			go func(uid int64) {
				_, err := p.Submit(context.Background(), buy(uid, "AAPL", 1, 100))
				results <- err
			}(userID)
		}
	}

	for i := 0; i < users*tradesPerUser; i++ {
		if err := <-results; err != nil {
			t.Errorf("trade failed: %v", err)
		}
	}

	for _, userID := range userIDs {
		if got := mustBalance(t, st, userID); !got.Equal(decimal.NewFromInt(9000)) {
			t.Errorf("user %d: expected balance 9000, got %s", userID, got)
		}
	}
}

func TestProcessor_SubmitCancelledContext(t *testing.T) {
	engine, _ := newTestEngine(t)

	p := NewProcessor(engine, 1, testLogger())
	p.Start()
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Submit(ctx, buy(1, "AAPL", 1, 100))
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestProcessor_StopAnswersQueuedOrders(t *testing.T) {
	engine, _ := newTestEngine(t)

	// No workers are started, so the order stays queued until Stop drains it.
	p := NewProcessor(engine, 1, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), buy(1, "AAPL", 1, 100))
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for len(p.queue) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("order was never queued")
		}
		time.Sleep(time.Millisecond)
	}

	p.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued order was never answered after Stop")
	}

	if _, err := p.Submit(context.Background(), buy(1, "AAPL", 1, 100)); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped after shutdown, got %v", err)
	}
}
