package types

type TradeKind string

const (
	TradeKindBuy  TradeKind = "BUY"
	TradeKindSell TradeKind = "SELL"
)

func (k TradeKind) Valid() bool {
	return k == TradeKindBuy || k == TradeKindSell
}
