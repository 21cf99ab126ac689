package integration

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	catalogapp "github.com/example/storefront/internal/catalog/application"
	catalogdomain "github.com/example/storefront/internal/catalog/domain"
	catalogpg "github.com/example/storefront/internal/catalog/infrastructure/postgres"
	orderapp "github.com/example/storefront/internal/order/application"
	orderdomain "github.com/example/storefront/internal/order/domain"
	orderkafka "github.com/example/storefront/internal/order/infrastructure/kafka"
	orderpg "github.com/example/storefront/internal/order/infrastructure/postgres"
	"github.com/example/storefront/migrations"
	"github.com/example/storefront/pkg/logging"
	"github.com/example/storefront/pkg/outbox"
	"github.com/example/storefront/pkg/tracing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const testTraceparent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"

func TestStorefrontEndToEnd(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, migrations.Apply(ctx, pool))

	log := logging.New()
	catalogSvc := catalogapp.NewService(catalogpg.NewRepository(log, pool))
	orderSvc := orderapp.NewService(orderpg.NewRepository(log, pool))

	seed := func(name, price string, count int) catalogdomain.Product {
		p, err := catalogSvc.Create(ctx, catalogdomain.Product{
			Name:           name,
			Description:    name + " description",
			Price:          decimal.RequireFromString(price),
			AvailableCount: count,
		})
		require.NoError(t, err)
		return p
	}

	stock := func(id int64) int {
		p, err := catalogSvc.Get(ctx, id)
		require.NoError(t, err)
		return p.AvailableCount
	}

	t.Run("placement decrements stock and captures price", func(t *testing.T) {
		widget := seed("Widget", "29.99", 10)

		o, err := orderSvc.PlaceOrder(ctx, uuid.New(), []orderapp.Line{{ProductID: widget.ID, Quantity: 3}}, testTraceparent)
		require.NoError(t, err)
		assert.Equal(t, "89.97", o.Total.String())
		assert.Equal(t, 7, stock(widget.ID))

		// Later price edits never change the stored order.
		newPrice := 99.99
		_, err = catalogSvc.Patch(ctx, widget.ID, catalogdomain.Patch{Price: decimalPtr(newPrice)})
		require.NoError(t, err)

		stored, err := orderSvc.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "89.97", stored.Total.String())
		require.Len(t, stored.Items, 1)
		assert.Equal(t, "29.99", stored.Items[0].Price.String())
		assert.Equal(t, "Widget", stored.Items[0].Name)
	})

	t.Run("same product on multiple lines persists as separate items", func(t *testing.T) {
		bolt := seed("Bolt", "0.50", 20)

		o, err := orderSvc.PlaceOrder(ctx, uuid.New(), []orderapp.Line{
			{ProductID: bolt.ID, Quantity: 12},
			{ProductID: bolt.ID, Quantity: 3},
		}, "")
		require.NoError(t, err)
		assert.Equal(t, 5, stock(bolt.ID))

		stored, err := orderSvc.Get(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 2)
		assert.Equal(t, 12, stored.Items[0].Quantity)
		assert.Equal(t, 3, stored.Items[1].Quantity)
		assert.Equal(t, "7.5", stored.Total.String())
	})

	t.Run("line items come back in submission order", func(t *testing.T) {
		zeta := seed("Zeta", "1.00", 5)
		alpha := seed("Alpha", "1.00", 5)

		// alpha has the higher id, so id order and submission order disagree.
		o, err := orderSvc.PlaceOrder(ctx, uuid.New(), []orderapp.Line{
			{ProductID: alpha.ID, Quantity: 1},
			{ProductID: zeta.ID, Quantity: 1},
		}, "")
		require.NoError(t, err)

		stored, err := orderSvc.Get(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, stored.Items, 2)
		assert.Equal(t, "Alpha", stored.Items[0].Name)
		assert.Equal(t, "Zeta", stored.Items[1].Name)
	})

	t.Run("failed placement leaves no partial decrements", func(t *testing.T) {
		first := seed("First", "1.00", 10)
		second := seed("Second", "1.00", 5)

		_, err := orderSvc.PlaceOrder(ctx, uuid.New(), []orderapp.Line{
			{ProductID: first.ID, Quantity: 2},
			{ProductID: second.ID, Quantity: 100},
		}, "")
		var stockErr *orderdomain.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)

		assert.Equal(t, 10, stock(first.ID))
		assert.Equal(t, 5, stock(second.ID))
	})

	t.Run("concurrent placements cannot oversell", func(t *testing.T) {
		gizmo := seed("Gizmo", "2.00", 10)

		results := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				_, err := orderSvc.PlaceOrder(ctx, uuid.New(), []orderapp.Line{{ProductID: gizmo.ID, Quantity: 6}}, "")
				results <- err
			}()
		}
		var failures int
		for i := 0; i < 2; i++ {
			if err := <-results; err != nil {
				var stockErr *orderdomain.InsufficientStockError
				require.ErrorAs(t, err, &stockErr)
				failures++
			}
		}
		require.Equal(t, 1, failures, "exactly one of the two placements must fail")
		assert.Equal(t, 4, stock(gizmo.ID))
	})

	t.Run("outbox relay publishes OrderPlaced to kafka", func(t *testing.T) {
		otel.SetTextMapPropagator(propagation.TraceContext{})

		publisher := orderkafka.NewPublisher(env.KAddr)
		defer publisher.Close()
		relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), outbox.NewDispatcher(log, publisher, "order.events"), "test-relay")

		relayCtx, stopRelay := context.WithCancel(ctx)
		defer stopRelay()
		go func() { _ = relay.Run(relayCtx) }()

		thing := seed("Thing", "4.00", 3)
		o, err := orderSvc.PlaceOrder(ctx, uuid.New(), []orderapp.Line{{ProductID: thing.ID, Quantity: 1}}, testTraceparent)
		require.NoError(t, err)

		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  env.KAddr,
			Topic:    "order.events",
			GroupID:  "integration-test",
			MaxWait:  time.Second,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		defer reader.Close()

		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		msg, err := readFor(readCtx, reader, o.ID.String())
		require.NoError(t, err)

		var event orderdomain.OrderPlaced
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		assert.Equal(t, o.ID.String(), event.OrderID)
		assert.Equal(t, "4", event.Total.String())

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		sc := trace.SpanContextFromContext(msgCtx)
		assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", sc.TraceID().String())
	})

	t.Run("catalog crud round trip", func(t *testing.T) {
		p := seed("Doohickey", "7.25", 1)

		page, err := catalogSvc.List(ctx, 1, 100)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, page.Total, 1)

		quantities, err := catalogSvc.Quantities(ctx, []int64{p.ID, 999999})
		require.NoError(t, err)
		require.Len(t, quantities, 1)
		assert.Equal(t, 1, quantities[0].AvailableCount)

		require.NoError(t, catalogSvc.Delete(ctx, p.ID))
		_, err = catalogSvc.Get(ctx, p.ID)
		var notFound *catalogdomain.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

// readFor consumes until it sees the message keyed by orderID; other subtests
// may have produced onto the same topic.
func readFor(ctx context.Context, reader *kafkago.Reader, orderID string) (kafkago.Message, error) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			return kafkago.Message{}, err
		}
		if string(msg.Key) == orderID {
			return msg, nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return kafkago.Message{}, ctx.Err()
		}
	}
}

func decimalPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
