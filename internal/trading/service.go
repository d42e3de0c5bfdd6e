package trading

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"paperstock/internal/apperr"
	"paperstock/internal/quotes"
	"paperstock/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Whole shares only; no sign, no fractions.
var wholeNumber = regexp.MustCompile(`^\d+$`)

type Service struct {
	pool         *pgxpool.Pool
	provider     quotes.Provider
	quoteTimeout time.Duration
}

func NewService(pool *pgxpool.Pool, provider quotes.Provider, quoteTimeout time.Duration) *Service {
	return &Service{pool: pool, provider: provider, quoteTimeout: quoteTimeout}
}

type Position struct {
	Symbol string
	Name   string
	Shares int64
	Price  decimal.Decimal
	Total  decimal.Decimal
}

type PortfolioView struct {
	Cash      decimal.Decimal
	Positions []Position
}

type TradeResult struct {
	Symbol string
	Shares int64
	Price  decimal.Decimal
	Amount decimal.Decimal
	Cash   decimal.Decimal
}

type SellResult struct {
	Sold bool
	TradeResult
}

type HistoryEntry struct {
	Kind         types.TradeKind
	Timestamp    time.Time
	Symbol       string
	Shares       int64
	Price        decimal.Decimal
	CurrentPrice *decimal.Decimal
}

// Quote resolves a symbol through the lookup collaborator. Pure read.
func (s *Service) Quote(ctx context.Context, symbol string) (quotes.Quote, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return quotes.Quote{}, apperr.New(apperr.KindValidation, "you must provide a symbol")
	}
	return s.lookup(ctx, symbol)
}

// Buy purchases shares at the current price. The cash debit, position
// upsert, and history append commit in one serializable transaction.
func (s *Service) Buy(ctx context.Context, userID, symbol, sharesRaw string) (TradeResult, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return TradeResult{}, apperr.New(apperr.KindValidation, "you must enter a symbol")
	}
	shares, err := parseShares(sharesRaw)
	if err != nil {
		return TradeResult{}, err
	}
	quote, err := s.lookup(ctx, symbol)
	if err != nil {
		return TradeResult{}, err
	}
	cost := tradeAmount(shares, quote.Price)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return TradeResult{}, err
	}
	defer tx.Rollback(ctx)

	var cash decimal.Decimal
	if err := tx.QueryRow(ctx, "select cash from users where id = $1 for update", userID).Scan(&cash); err != nil {
		return TradeResult{}, err
	}
	if cost.GreaterThan(cash) {
		return TradeResult{}, apperr.New(apperr.KindInsufficientFunds, "you don't have enough cash")
	}
	cash = cash.Sub(cost)
	if _, err := tx.Exec(ctx, "update users set cash = $1 where id = $2", cash, userID); err != nil {
		return TradeResult{}, err
	}
	_, err = tx.Exec(ctx,
		"insert into portfolio (user_id, symbol, shares) values ($1, $2, $3) on conflict (user_id, symbol) do update set shares = portfolio.shares + excluded.shares",
		userID, symbol, shares)
	if err != nil {
		return TradeResult{}, err
	}
	if err := appendHistory(ctx, tx, userID, types.TradeKindBuy, symbol, shares, quote.Price); err != nil {
		return TradeResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return TradeResult{}, err
	}
	return TradeResult{Symbol: symbol, Shares: shares, Price: quote.Price, Amount: cost, Cash: cash}, nil
}

// Sell liquidates the user's entire position in a symbol. Selling a symbol
// the user does not hold is a silent no-op, not an error.
func (s *Service) Sell(ctx context.Context, userID, symbol string) (SellResult, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return SellResult{}, apperr.New(apperr.KindValidation, "you must provide a symbol")
	}

	// Cheap unlocked read so the no-op path never touches the quote service.
	var held int64
	err := s.pool.QueryRow(ctx, "select shares from portfolio where user_id = $1 and symbol = $2", userID, symbol).Scan(&held)
	if errors.Is(err, pgx.ErrNoRows) {
		return SellResult{}, nil
	}
	if err != nil {
		return SellResult{}, err
	}

	quote, err := s.lookup(ctx, symbol)
	if err != nil {
		return SellResult{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return SellResult{}, err
	}
	defer tx.Rollback(ctx)

	// Lock order matches Buy: the users row first, then the position row.
	var cash decimal.Decimal
	if err := tx.QueryRow(ctx, "select cash from users where id = $1 for update", userID).Scan(&cash); err != nil {
		return SellResult{}, err
	}
	// Re-read under lock; a concurrent sell may have emptied the position.
	err = tx.QueryRow(ctx, "select shares from portfolio where user_id = $1 and symbol = $2 for update", userID, symbol).Scan(&held)
	if errors.Is(err, pgx.ErrNoRows) {
		return SellResult{}, nil
	}
	if err != nil {
		return SellResult{}, err
	}
	proceeds := tradeAmount(held, quote.Price)
	cash = cash.Add(proceeds)
	if _, err := tx.Exec(ctx, "update users set cash = $1 where id = $2", cash, userID); err != nil {
		return SellResult{}, err
	}
	if _, err := tx.Exec(ctx, "delete from portfolio where user_id = $1 and symbol = $2", userID, symbol); err != nil {
		return SellResult{}, err
	}
	if err := appendHistory(ctx, tx, userID, types.TradeKindSell, symbol, held, quote.Price); err != nil {
		return SellResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SellResult{}, err
	}
	return SellResult{
		Sold:        true,
		TradeResult: TradeResult{Symbol: symbol, Shares: held, Price: quote.Price, Amount: proceeds, Cash: cash},
	}, nil
}

// Deposit credits the cash balance. Whole currency units only.
func (s *Service) Deposit(ctx context.Context, userID, amountRaw string) (decimal.Decimal, error) {
	amountRaw = strings.TrimSpace(amountRaw)
	if amountRaw == "" {
		return decimal.Decimal{}, apperr.New(apperr.KindValidation, "you must enter the deposit amount")
	}
	if !wholeNumber.MatchString(amountRaw) {
		return decimal.Decimal{}, apperr.New(apperr.KindValidation, "invalid deposit amount")
	}
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return decimal.Decimal{}, apperr.New(apperr.KindValidation, "invalid deposit amount")
	}
	var cash decimal.Decimal
	err = s.pool.QueryRow(ctx, "update users set cash = cash + $1 where id = $2 returning cash", amount, userID).Scan(&cash)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return cash, nil
}

// Portfolio projects the user's holdings at current prices. Positions whose
// symbol no longer resolves are dropped from the view, not errored.
func (s *Service) Portfolio(ctx context.Context, userID string) (PortfolioView, error) {
	var view PortfolioView
	if err := s.pool.QueryRow(ctx, "select cash from users where id = $1", userID).Scan(&view.Cash); err != nil {
		return PortfolioView{}, err
	}
	rows, err := s.pool.Query(ctx, "select symbol, shares from portfolio where user_id = $1 order by symbol", userID)
	if err != nil {
		return PortfolioView{}, err
	}
	defer rows.Close()
	type holding struct {
		symbol string
		shares int64
	}
	var holdings []holding
	for rows.Next() {
		var h holding
		if err := rows.Scan(&h.symbol, &h.shares); err != nil {
			return PortfolioView{}, err
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return PortfolioView{}, err
	}
	view.Positions = make([]Position, 0, len(holdings))
	for _, h := range holdings {
		quote, err := s.lookup(ctx, h.symbol)
		if err != nil {
			continue
		}
		view.Positions = append(view.Positions, Position{
			Symbol: h.symbol,
			Name:   quote.Name,
			Shares: h.shares,
			Price:  quote.Price,
			Total:  tradeAmount(h.shares, quote.Price),
		})
	}
	return view, nil
}

// History lists the user's trades in storage order. Each entry carries the
// recorded execution price plus the current price when the symbol still
// resolves; the current price is display enrichment only.
func (s *Service) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		"select kind, created_at, symbol, shares, price from history where user_id = $1 order by id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var e HistoryEntry
		var kind string
		if err := rows.Scan(&kind, &e.Timestamp, &e.Symbol, &e.Shares, &e.Price); err != nil {
			return nil, err
		}
		e.Kind = types.TradeKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		quote, err := s.lookup(ctx, entries[i].Symbol)
		if err != nil {
			continue
		}
		price := quote.Price
		entries[i].CurrentPrice = &price
	}
	return entries, nil
}

func (s *Service) lookup(ctx context.Context, symbol string) (quotes.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.quoteTimeout)
	defer cancel()
	quote, err := s.provider.Lookup(ctx, symbol)
	if err != nil {
		switch {
		case errors.Is(err, quotes.ErrNotFound):
			return quotes.Quote{}, apperr.New(apperr.KindNotFound, "invalid stock symbol")
		case errors.Is(err, quotes.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
			return quotes.Quote{}, apperr.Wrap(apperr.KindUpstreamUnavailable, "quote service unavailable", err)
		default:
			return quotes.Quote{}, err
		}
	}
	return quote, nil
}

func appendHistory(ctx context.Context, tx pgx.Tx, userID string, kind types.TradeKind, symbol string, shares int64, price decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		"insert into history (user_id, kind, created_at, symbol, shares, price) values ($1, $2, $3, $4, $5, $6)",
		userID, string(kind), time.Now().UTC(), symbol, shares, price)
	return err
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func parseShares(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperr.New(apperr.KindValidation, "you must enter the number of shares")
	}
	if !wholeNumber.MatchString(raw) {
		return 0, apperr.New(apperr.KindValidation, "invalid number of shares")
	}
	shares, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || shares < 1 {
		return 0, apperr.New(apperr.KindValidation, "invalid number of shares")
	}
	return shares, nil
}

func tradeAmount(shares int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(shares))
}
