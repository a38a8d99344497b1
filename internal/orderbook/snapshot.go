package orderbook

import (
	"math"
	"sort"
	"time"

	"github.com/nathanyu/market-spread/internal/domain"
)

// Snapshot returns the full market state: sorted order lists plus
// derived metrics. Calling it twice without an intervening mutation
// yields equal snapshots (apart from the stamp passed by the caller).
func (b *Book) Snapshot(now time.Time) domain.MarketSnapshot {
	buys, buyVolume := collectOrders(b.buyLevels, true)
	sells, sellVolume := collectOrders(b.sellLevels, false)

	volatility, trend := b.tradeMetrics()

	return domain.MarketSnapshot{
		Price:          b.currentPrice,
		LastTradePrice: b.lastTradePrice,
		Volatility:     volatility,
		Trend:          trend,
		MarketCap:      (buyVolume+sellVolume)*b.currentPrice + b.cfg.BaseMarketCap,
		BuyVolume:      buyVolume,
		SellVolume:     sellVolume,
		BuyOrders:      buys,
		SellOrders:     sells,
		TradeCount:     b.trades.Len(),
		Timestamp:      now,
	}
}

// BookSnapshot returns an aggregated two-sided view limited to depth
// levels per side (0 for all).
func (b *Book) BookSnapshot(depth int) domain.BookSnapshot {
	return domain.BookSnapshot{
		Bids: aggregateLevels(b.buyLevels, depth, true),
		Asks: aggregateLevels(b.sellLevels, depth, false),
	}
}

// collectOrders flattens one side into a sorted order list. Buys sort
// by price descending, sells ascending; creation time breaks ties.
func collectOrders(levels map[float64]*bookLevel, descending bool) ([]domain.Order, float64) {
	var orders []domain.Order
	var volume float64
	for _, level := range levels {
		for _, entry := range level.Entries {
			orders = append(orders, *entry.order)
			volume += entry.order.Amount
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Price != orders[j].Price {
			if descending {
				return orders[i].Price > orders[j].Price
			}
			return orders[i].Price < orders[j].Price
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, volume
}

// aggregateLevels collects price levels sorted by price.
// For bids: descending (highest first). For asks: ascending (lowest first).
func aggregateLevels(levels map[float64]*bookLevel, depth int, descending bool) []domain.PriceLevel {
	prices := make([]float64, 0, len(levels))
	for price := range levels {
		prices = append(prices, price)
	}

	if descending {
		sort.Slice(prices, func(i, j int) bool { return prices[i] > prices[j] })
	} else {
		sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })
	}

	if depth > 0 && len(prices) > depth {
		prices = prices[:depth]
	}

	result := make([]domain.PriceLevel, len(prices))
	for i, price := range prices {
		level := levels[price]
		result[i] = domain.PriceLevel{
			Price:       price,
			TotalAmount: level.TotalAmount,
			OrderCount:  len(level.Entries),
		}
	}
	return result
}

// tradeMetrics derives volatility and trend from the retained trades.
// Both are 0 when fewer than two trades exist.
func (b *Book) tradeMetrics() (volatility, trend float64) {
	prices := b.trades.Prices()
	if len(prices) < 2 {
		return 0, 0
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))

	var variance float64
	for _, p := range prices {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(prices))

	if mean != 0 {
		volatility = math.Sqrt(variance) / mean
	}

	first := prices[0]
	last := prices[len(prices)-1]
	if first != 0 {
		trend = (last - first) / first
	}
	return volatility, trend
}
