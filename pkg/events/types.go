// Package events defines the marketplace engine's produced event types
// (§6) and the Publisher capability that delivers them, with Kafka and
// NATS backends adapted from the teacher's pkg/kafka and pkg/nats.
package events

import (
	"encoding/json"
	"strconv"

	"sftbazaar.io/pkg/position"
)

// Message is the common envelope every event implements (teacher's
// kafka.Message interface: Topic/Key/Value).
type Message interface {
	Topic() string
	Key() string
	Value() ([]byte, error)
}

func marshal(v any) ([]byte, error) { return json.Marshal(v) }

// ItemCreated is produced when the Item Registry registers a new item.
type ItemCreated struct {
	ItemID      int64  `json:"item_id"`
	NFTContract string `json:"nft_contract"`
	TokenID     string `json:"token_id"`
	Creator     string `json:"creator"`
}

func (e ItemCreated) Topic() string       { return "market.item_created" }
func (e ItemCreated) Key() string         { return itoa(e.ItemID) }
func (e ItemCreated) Value() ([]byte, error) { return marshal(e) }

// PositionUpdate is produced whenever a Position's fields change.
type PositionUpdate struct {
	PositionID        int64  `json:"position_id"`
	ItemID            int64  `json:"item_id"`
	Owner             string `json:"owner"`
	Amount            int64  `json:"amount"`
	Price             string `json:"price"`
	MarketFeeSnapshot int64  `json:"market_fee_snapshot"`
	State             string `json:"state"`
}

func FromPosition(p *position.Position) PositionUpdate {
	return PositionUpdate{
		PositionID:        p.PositionID,
		ItemID:            p.ItemID,
		Owner:             p.Owner,
		Amount:            p.Amount,
		Price:             p.Price.String(),
		MarketFeeSnapshot: p.MarketFeeSnapshot,
		State:             p.State.String(),
	}
}

func (e PositionUpdate) Topic() string       { return "market.position_update" }
func (e PositionUpdate) Key() string         { return itoa(e.PositionID) }
func (e PositionUpdate) Value() ([]byte, error) { return marshal(e) }

// PositionDelete is produced when a Position is removed.
type PositionDelete struct {
	PositionID int64 `json:"position_id"`
}

func (e PositionDelete) Topic() string       { return "market.position_delete" }
func (e PositionDelete) Key() string         { return itoa(e.PositionID) }
func (e PositionDelete) Value() ([]byte, error) { return marshal(e) }

// MarketItemSold is produced on every completed sale-type trade (sale
// fill, auction settlement, raffle settlement); loan operations do not
// produce it.
type MarketItemSold struct {
	ItemID      int64  `json:"item_id"`
	NFTContract string `json:"nft_contract"`
	TokenID     string `json:"token_id"`
	Seller      string `json:"seller"`
	Buyer       string `json:"buyer"`
	Price       string `json:"price"`
	Amount      int64  `json:"amount"`
}

func (e MarketItemSold) Topic() string       { return "market.item_sold" }
func (e MarketItemSold) Key() string         { return itoa(e.ItemID) }
func (e MarketItemSold) Value() ([]byte, error) { return marshal(e) }

// MarketFeeChanged is produced by the admin surface's setMarketFee.
type MarketFeeChanged struct {
	Prev int64 `json:"prev"`
	New  int64 `json:"new"`
}

func (e MarketFeeChanged) Topic() string       { return "market.fee_changed" }
func (e MarketFeeChanged) Key() string         { return "fee" }
func (e MarketFeeChanged) Value() ([]byte, error) { return marshal(e) }

// RoyaltiesPaid is produced whenever the Settlement Pipeline deducts a
// non-zero royalty, whether it reached the receiver directly or was
// credited as a claimable balance.
type RoyaltiesPaid struct {
	TokenID string `json:"token_id"`
	Value   string `json:"value"`
}

func (e RoyaltiesPaid) Topic() string       { return "market.royalties_paid" }
func (e RoyaltiesPaid) Key() string         { return e.TokenID }
func (e RoyaltiesPaid) Value() ([]byte, error) { return marshal(e) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
