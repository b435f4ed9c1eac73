package pubsub

import (
	"context"
	"testing"
)

func TestBroker_DeliversByTopic(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	var gotA, gotB []string
	b.Subscribe("topic.a", func(_ context.Context, topic string, _ any) {
		gotA = append(gotA, topic)
	})
	b.Subscribe("topic.b", func(_ context.Context, topic string, _ any) {
		gotB = append(gotB, topic)
	})

	if err := b.Publish(context.Background(), "topic.a", "payload"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(gotA) != 1 || gotA[0] != "topic.a" {
		t.Fatalf("expected topic.a delivery, got %v", gotA)
	}
	if len(gotB) != 0 {
		t.Fatalf("expected no topic.b delivery, got %v", gotB)
	}
}

func TestBroker_WildcardSeesEverything(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	var got []string
	b.Subscribe(TopicAll, func(_ context.Context, topic string, _ any) {
		got = append(got, topic)
	})

	topics := []string{"queue.joined", "queue.left", "payment.processed"}
	for _, topic := range topics {
		if err := b.Publish(context.Background(), topic, nil); err != nil {
			t.Fatalf("publish %s: %v", topic, err)
		}
	}

	if len(got) != len(topics) {
		t.Fatalf("expected %d deliveries, got %d", len(topics), len(got))
	}
	for i, topic := range topics {
		if got[i] != topic {
			t.Fatalf("expected %s at %d, got %s", topic, i, got[i])
		}
	}
}

func TestBroker_MultipleSubscribersInOrder(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		b.Subscribe("t", func(_ context.Context, _ string, _ any) {
			order = append(order, i)
		})
	}

	if err := b.Publish(context.Background(), "t", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected subscription-order delivery, got %v", order)
	}
}

func TestBroker_NoSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	if err := b.Publish(context.Background(), "lonely", 42); err != nil {
		t.Fatalf("publish to empty topic: %v", err)
	}
}
