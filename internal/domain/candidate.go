package domain

// TokenCandidate is one concrete tradable venue for a token.
// Multiple candidates may exist per token per cycle; the resolver owns them
// and the execution router only reads them.
type TokenCandidate struct {
	Chain        string  // chain identifier, e.g. "ethereum", "solana"
	DEX          string  // venue identifier, e.g. "uniswap_v3"
	Address      string  // token contract (or mint) address
	AssetClass   string  // canonical underlying asset, e.g. WETH -> "ETH"
	LiquidityUSD float64 // quoted pool liquidity
	GasCostUSD   float64 // estimated gas cost for one swap
	SlippageEst  float64 // estimated slippage fraction for the quoted size
	DiscoveredAt int64   // Unix timestamp in milliseconds
}

// Venue returns the (chain, dex, address) tuple as a stable display key.
func (c TokenCandidate) Venue() string {
	return c.Chain + "/" + c.DEX + "/" + c.Address
}
