package resolver

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"dexpilot/internal/config"
	"dexpilot/internal/domain"
)

// Kind tags a Resolution so callers cannot mistake an unresolved symbol
// for a tradable one.
type Kind string

const (
	// KindResolvedAddress means the query was a valid contract address and
	// resolved directly, without a search round-trip.
	KindResolvedAddress Kind = "RESOLVED_ADDRESS"

	// KindSymbolCandidates means the query was a symbol with at least one
	// search hit.
	KindSymbolCandidates Kind = "SYMBOL_CANDIDATES"

	// KindNotFound means nothing matched. Not an error.
	KindNotFound Kind = "NOT_FOUND"
)

// Resolution is the outcome of resolving one query.
type Resolution struct {
	Kind       Kind
	Query      string
	Candidates []domain.TokenCandidate
}

// Searcher queries an external token-metadata service for one chain.
type Searcher interface {
	SearchToken(ctx context.Context, chain, symbol string) ([]domain.TokenCandidate, error)
}

// LiquidityQuoter quotes current pool liquidity for a contract address.
// Symbol searches carry liquidity in their hits; address resolutions need
// an explicit quote.
type LiquidityQuoter interface {
	GetLiquidity(ctx context.Context, chain, address string) (float64, error)
}

// Resolver maps a free-text symbol or contract address to tradable
// (chain, dex, address) candidates.
type Resolver struct {
	search        Searcher
	liquidity     LiquidityQuoter
	chainPriority []string
	venues        map[string][]config.Venue

	// canonical maps every known symbol (wrapped or not) to its underlying
	// asset class. Wrapped variants share a class but stay separate
	// candidates.
	canonical map[string]string
	variants  map[string][]string

	logger  *log.Logger
	verbose bool
}

// Options configures a Resolver.
type Options struct {
	Search        Searcher
	Liquidity     LiquidityQuoter // optional; enriches address resolutions
	ChainPriority []string
	Equivalence   map[string]string // wrapped symbol -> underlying
	Venues        map[string][]config.Venue

	Logger  *log.Logger
	Verbose bool
}

// New creates a Resolver. The equivalence map is expanded into a
// bidirectional lookup at construction.
func New(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	canonical := make(map[string]string)
	variants := make(map[string][]string)
	for wrapped, underlying := range opts.Equivalence {
		w := strings.ToUpper(wrapped)
		u := strings.ToUpper(underlying)
		canonical[w] = u
		canonical[u] = u
		variants[u] = append(variants[u], w)
	}
	for u := range variants {
		variants[u] = append(variants[u], u)
		sort.Strings(variants[u])
	}

	return &Resolver{
		search:        opts.Search,
		liquidity:     opts.Liquidity,
		chainPriority: opts.ChainPriority,
		venues:        opts.Venues,
		canonical:     canonical,
		variants:      variants,
		logger:        logger,
		verbose:       opts.Verbose,
	}
}

// Resolve maps a symbol or contract address to candidates. A raw address
// skips search and resolves on its own chain. An unknown symbol yields
// KindNotFound with no candidates.
func (r *Resolver) Resolve(ctx context.Context, query string) Resolution {
	query = strings.TrimSpace(query)
	if query == "" {
		return Resolution{Kind: KindNotFound, Query: query}
	}

	if IsEVMAddress(query) {
		chain := r.firstEVMChain()
		return r.resolveAddress(ctx, query, chain)
	}
	if IsSolanaAddress(query) {
		return r.resolveAddress(ctx, query, "solana")
	}

	return r.resolveSymbol(ctx, strings.ToUpper(query))
}

// resolveAddress builds one candidate per configured venue on the chain.
// The address is trusted as-is; liquidity comes from a best-effort quote so
// the safety scorer and venue ranking keep their signal on address queries.
func (r *Resolver) resolveAddress(ctx context.Context, address, chain string) Resolution {
	if chain == "" {
		return Resolution{Kind: KindNotFound, Query: address}
	}

	now := time.Now().UnixMilli()
	book := r.venues[chain]
	liq := r.quoteLiquidity(ctx, chain, address)

	var candidates []domain.TokenCandidate
	if len(book) == 0 {
		candidates = []domain.TokenCandidate{{
			Chain:        chain,
			Address:      address,
			LiquidityUSD: liq,
			DiscoveredAt: now,
		}}
	} else {
		for _, v := range book {
			candidates = append(candidates, domain.TokenCandidate{
				Chain:        chain,
				DEX:          v.DEX,
				Address:      address,
				LiquidityUSD: liq,
				GasCostUSD:   v.GasCostUSD,
				DiscoveredAt: now,
			})
		}
	}

	return Resolution{
		Kind:       KindResolvedAddress,
		Query:      address,
		Candidates: candidates,
	}
}

// resolveSymbol fans the search out per chain and per equivalent symbol,
// joins the results, deduplicates by (chain, address), and orders by chain
// priority then liquidity.
func (r *Resolver) resolveSymbol(ctx context.Context, symbol string) Resolution {
	class := r.assetClass(symbol)
	symbols := r.searchSymbols(symbol, class)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		all []domain.TokenCandidate
	)

	for _, chain := range r.chainPriority {
		for _, sym := range symbols {
			wg.Add(1)
			go func(chain, sym string) {
				defer wg.Done()

				hits, err := r.search.SearchToken(ctx, chain, sym)
				if err != nil {
					// Search is best-effort; a failed chain just
					// contributes nothing.
					r.log("search %s on %s: %v", sym, chain, err)
					return
				}
				mu.Lock()
				all = append(all, hits...)
				mu.Unlock()
			}(chain, sym)
		}
	}
	wg.Wait()

	candidates := r.prepare(all, class)
	if len(candidates) == 0 {
		return Resolution{Kind: KindNotFound, Query: symbol}
	}
	return Resolution{
		Kind:       KindSymbolCandidates,
		Query:      symbol,
		Candidates: candidates,
	}
}

// prepare deduplicates, tags the asset class, seeds missing gas estimates
// from the venue book, and sorts by chain priority then liquidity DESC.
func (r *Resolver) prepare(hits []domain.TokenCandidate, class string) []domain.TokenCandidate {
	seen := make(map[string]bool, len(hits))
	out := make([]domain.TokenCandidate, 0, len(hits))

	for _, c := range hits {
		key := c.Chain + "/" + c.Address
		if c.Address == "" || seen[key] {
			continue
		}
		seen[key] = true

		c.AssetClass = class
		if c.GasCostUSD == 0 {
			c.GasCostUSD = r.gasEstimate(c.Chain, c.DEX)
		}
		if c.DiscoveredAt == 0 {
			c.DiscoveredAt = time.Now().UnixMilli()
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := r.chainRank(out[i].Chain), r.chainRank(out[j].Chain)
		if ri != rj {
			return ri < rj
		}
		return out[i].LiquidityUSD > out[j].LiquidityUSD
	})
	return out
}

// searchSymbols returns the queried symbol plus its wrapped/unwrapped
// equivalents, query first.
func (r *Resolver) searchSymbols(symbol, class string) []string {
	out := []string{symbol}
	for _, v := range r.variants[class] {
		if v != symbol {
			out = append(out, v)
		}
	}
	return out
}

func (r *Resolver) assetClass(symbol string) string {
	if c, ok := r.canonical[symbol]; ok {
		return c
	}
	return symbol
}

func (r *Resolver) chainRank(chain string) int {
	for i, c := range r.chainPriority {
		if c == chain {
			return i
		}
	}
	return len(r.chainPriority)
}

func (r *Resolver) gasEstimate(chain, dexID string) float64 {
	book := r.venues[chain]
	for _, v := range book {
		if v.DEX == dexID {
			return v.GasCostUSD
		}
	}
	if len(book) > 0 {
		return book[0].GasCostUSD
	}
	return 0
}

// quoteLiquidity is best-effort; a failed quote leaves liquidity unknown.
func (r *Resolver) quoteLiquidity(ctx context.Context, chain, address string) float64 {
	if r.liquidity == nil {
		return 0
	}
	liq, err := r.liquidity.GetLiquidity(ctx, chain, address)
	if err != nil {
		r.log("liquidity %s on %s: %v", address, chain, err)
		return 0
	}
	return liq
}

func (r *Resolver) firstEVMChain() string {
	for _, c := range r.chainPriority {
		if c != "solana" {
			return c
		}
	}
	return ""
}

func (r *Resolver) log(format string, args ...interface{}) {
	if r.verbose {
		r.logger.Printf("[resolver] "+format, args...)
	}
}
