package solidity

import (
	lru "github.com/hashicorp/golang-lru"
)

const (
	// library placeholders occupy a 20 byte address slot
	libraryPlaceholderSize = 20

	// immutable references are always full 32 byte words
	immutablePlaceholderSize = 32
)

// DefaultIdentifierConfig is the default config for the contracts identifier
var DefaultIdentifierConfig = &IdentifierConfig{
	CacheSize: 128,
}

// IdentifierConfig is a struct that holds configuration of ContractsIdentifier
type IdentifierConfig struct {
	// CacheSize is the number of recently identified code blobs kept
	CacheSize int
}

// ContractsIdentifier maps executed EVM code back to the compiled
// Bytecode it belongs to. Library addresses and immutable values are
// only known after deployment, so those regions are ignored when
// comparing code.
type ContractsIdentifier struct {
	runtime    []*Bytecode
	deployment []*Bytecode

	cache *lru.Cache
}

func NewContractsIdentifier(config *IdentifierConfig) *ContractsIdentifier {
	if config == nil {
		config = DefaultIdentifierConfig
	}

	cache, _ := lru.New(config.CacheSize)

	return &ContractsIdentifier{
		cache: cache,
	}
}

// AddBytecode registers a compiled contract's code so that later
// executions of it can be recognized
func (c *ContractsIdentifier) AddBytecode(bytecode *Bytecode) {
	if bytecode.IsDeployment {
		c.deployment = append(c.deployment, bytecode)
	} else {
		c.runtime = append(c.runtime, bytecode)
	}

	// registered code changes what a cached miss would resolve to
	c.cache.Purge()
}

// BytecodeFor returns the known bytecode matching the given executed
// code, or nil when the code is unrecognized. Deployment code is
// matched by prefix since constructor arguments are appended to it.
func (c *ContractsIdentifier) BytecodeFor(code []byte, isDeployment bool) *Bytecode {
	key := cacheKey(code, isDeployment)

	if cached, ok := c.cache.Get(key); ok {
		return cached.(*Bytecode)
	}

	candidates := c.runtime
	if isDeployment {
		candidates = c.deployment
	}

	for _, candidate := range candidates {
		if codeMatches(candidate, code) {
			c.cache.Add(key, candidate)

			return candidate
		}
	}

	return nil
}

func cacheKey(code []byte, isDeployment bool) string {
	if isDeployment {
		return "d" + string(code)
	}

	return "r" + string(code)
}

func codeMatches(bytecode *Bytecode, code []byte) bool {
	known := bytecode.NormalizedCode

	if bytecode.IsDeployment {
		// constructor arguments are ABI-encoded after the init code
		if len(code) < len(known) {
			return false
		}
	} else if len(code) != len(known) {
		return false
	}

	masked := maskedRegions(bytecode)

	for i := 0; i < len(known); i++ {
		if masked[i] {
			continue
		}

		if code[i] != known[i] {
			return false
		}
	}

	return true
}

func maskedRegions(bytecode *Bytecode) map[int]bool {
	masked := map[int]bool{}

	mark := func(offset, size int) {
		for i := offset; i < offset+size && i < len(bytecode.NormalizedCode); i++ {
			masked[i] = true
		}
	}

	for _, offset := range bytecode.LibraryOffsets {
		mark(offset, libraryPlaceholderSize)
	}

	for _, offset := range bytecode.ImmutableOffsets {
		mark(offset, immutablePlaceholderSize)
	}

	return masked
}
