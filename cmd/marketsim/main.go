// Command marketsim wires every engine component into a single running
// process and drives it through one scripted fixed-price-sale demo trade,
// the same role the teacher's cmd/simulation plays for the trading
// engine: a runnable end-to-end harness rather than a test.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sftbazaar.io/pkg/claim"
	"sftbazaar.io/pkg/events"
	"sftbazaar.io/pkg/ids"
	"sftbazaar.io/pkg/ledger"
	"sftbazaar.io/pkg/market"
	"sftbazaar.io/pkg/money"
	"sftbazaar.io/pkg/position"
	"sftbazaar.io/pkg/query"
	"sftbazaar.io/pkg/registry"
	"sftbazaar.io/pkg/rngsrc"
	"sftbazaar.io/pkg/settlement"
	"sftbazaar.io/pkg/store"
	"sftbazaar.io/pkg/sweep"
)

const platformOwner = "platform.owner"

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("starting marketsim")

	db, err := store.Open(env("MARKETSIM_MYSQL_DSN", "root:root@tcp(127.0.0.1:3306)/marketsim?parseTime=true"))
	if err != nil {
		log.Fatalf("connect mysql: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatalf("migrate engine tables: %v", err)
	}
	if err := store.AutoMigrateLedger(db); err != nil {
		log.Fatalf("migrate ledger tables: %v", err)
	}

	gen, err := ids.NewGenerator(0)
	if err != nil {
		log.Fatalf("new id generator: %v", err)
	}

	gw := store.NewGormLedger(db)
	items := registry.New(store.NewItemRepository(db), gw, gen.Next)
	positions := position.New(store.NewPositionRepository(db), items, gen.Next)
	claims := claim.New(store.NewClaimRepository(db))
	settler := settlement.New(gw, positions, claims)

	publisher := buildPublisher()
	defer publisher.Close()

	engine := market.New(market.Config{
		Ledger:        gw,
		Items:         items,
		Positions:     positions,
		Claims:        claims,
		Settler:       settler,
		Publisher:     publisher,
		RNG:           rngsrc.CryptoRand{},
		PlatformOwner: platformOwner,
	})

	var cache *query.Cache
	if addr := os.Getenv("MARKETSIM_REDIS_ADDR"); addr != "" {
		cache = query.NewCache(addr)
		defer cache.Close()
	}
	queries := query.New(items, positions, cache)

	sweeper := sweep.New(engine, positions, sweep.DefaultInterval)
	sweeper.Start()
	defer sweeper.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if ob, ok := publisher.(*events.Outbox); ok {
		go replayOutboxPeriodically(ctx, ob)
	}

	runDemoTrade(ctx, engine, queries, gw)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")
}

// buildPublisher chooses the event transport from MARKETSIM_EVENTS: kafka,
// nats, or outbox (the default — a local durable buffer with nothing
// underneath but Noop, suitable for the demo trade below since it has no
// broker to reach).
func buildPublisher() events.Publisher {
	switch os.Getenv("MARKETSIM_EVENTS") {
	case "kafka":
		p, err := events.NewKafkaPublisher(events.DefaultKafkaConfig([]string{env("MARKETSIM_KAFKA_BROKER", "127.0.0.1:9092")}))
		if err != nil {
			log.Fatalf("new kafka publisher: %v", err)
		}
		return p
	case "nats":
		p, err := events.NewNatsPublisher(env("MARKETSIM_NATS_URL", "nats://127.0.0.1:4222"))
		if err != nil {
			log.Fatalf("new nats publisher: %v", err)
		}
		return p
	default:
		ob, err := events.NewOutbox(env("MARKETSIM_OUTBOX_PATH", "./marketsim_outbox.log"), events.Noop{})
		if err != nil {
			log.Fatalf("new outbox: %v", err)
		}
		return ob
	}
}

func replayOutboxPeriodically(ctx context.Context, ob *events.Outbox) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ob.Replay(ctx); err != nil {
				log.Printf("outbox replay: %v", err)
			}
		}
	}
}

// runDemoTrade seeds two ledger balances and walks one fixed-price sale to
// completion, demonstrating the wiring end to end. The remaining three
// modes (auction, raffle, loan) are exercised by pkg/market's own tests
// rather than duplicated here.
func runDemoTrade(ctx context.Context, engine *market.Engine, queries *query.Service, gw *store.GormLedger) {
	tok := ledger.TokenID{NFTContract: "0xDemoCollection", TokenID: "1"}
	seller, buyer := "seller.demo", "buyer.demo"

	if err := gw.SeedBalance(ctx, seller, tok, 100); err != nil {
		log.Printf("seed balance: %v", err)
		return
	}

	itemID, err := engine.CreateItem(ctx, seller, tok)
	if err != nil {
		log.Printf("create item: %v", err)
		return
	}
	log.Printf("created item %d for %s", itemID, tok.TokenID)

	positionID, err := engine.PutOnSale(ctx, seller, itemID, 10, money.New(1_000_000))
	if err != nil {
		log.Printf("put on sale: %v", err)
		return
	}
	log.Printf("listed position %d for sale", positionID)

	// value arrives with the call the way a payable contract call would
	// carry native currency; the engine never debits a buyer balance
	// itself, only pays legs of it back out through the settlement
	// pipeline.
	if err := engine.CreateSale(ctx, buyer, positionID, 4, money.New(4_000_000)); err != nil {
		log.Printf("create sale: %v", err)
		return
	}
	log.Printf("buyer %s bought 4 units of item %d", buyer, itemID)

	it, err := queries.FetchItem(ctx, itemID)
	if err != nil {
		log.Printf("fetch item: %v", err)
		return
	}
	log.Printf("item %d now has %d recorded sale(s)", it.ItemID, len(it.Sales))
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
