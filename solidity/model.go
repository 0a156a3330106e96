package solidity

import (
	"strings"
)

// ContractKind is the kind of a contract-like Solidity declaration
type ContractKind int

const (
	// KindContract is a plain contract declaration
	KindContract ContractKind = iota
	// KindLibrary is a library declaration
	KindLibrary
	// KindInterface is an interface declaration
	KindInterface
)

func (k ContractKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindLibrary:
		return "library"
	case KindInterface:
		return "interface"
	default:
		panic("BUG: contract kind not found")
	}
}

// FunctionType is the kind of a function-like Solidity declaration
type FunctionType int

const (
	FunctionTypeFunction FunctionType = iota
	FunctionTypeConstructor
	FunctionTypeFallback
	FunctionTypeReceive
	FunctionTypeGetter
	FunctionTypeModifier
	FunctionTypeFreeFunction
)

func (f FunctionType) String() string {
	switch f {
	case FunctionTypeFunction:
		return "function"
	case FunctionTypeConstructor:
		return "constructor"
	case FunctionTypeFallback:
		return "fallback"
	case FunctionTypeReceive:
		return "receive"
	case FunctionTypeGetter:
		return "getter"
	case FunctionTypeModifier:
		return "modifier"
	case FunctionTypeFreeFunction:
		return "free function"
	default:
		panic("BUG: function type not found")
	}
}

// Visibility is the declared visibility of a function
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityInternal
	VisibilityPublic
	VisibilityExternal
)

// SourceFile is one compiled Solidity source, with the function
// declarations it contains indexed for range queries
type SourceFile struct {
	ID      int
	Name    string
	Content string

	functions []*ContractFunc
}

func NewSourceFile(id int, name, content string) *SourceFile {
	return &SourceFile{
		ID:      id,
		Name:    name,
		Content: content,
	}
}

// AddFunction registers a function declared within this file
func (f *SourceFile) AddFunction(fn *ContractFunc) {
	f.functions = append(f.functions, fn)
}

// FunctionAt returns the smallest function whose source range encloses
// the given offset, or nil if the offset is outside every function
func (f *SourceFile) FunctionAt(offset int) *ContractFunc {
	var best *ContractFunc

	for _, fn := range f.functions {
		if fn.Location == nil || !fn.Location.containsOffset(offset) {
			continue
		}

		if best == nil || fn.Location.Length < best.Location.Length {
			best = fn
		}
	}

	return best
}

// SourceLocation is a byte range within one source file
type SourceLocation struct {
	File   *SourceFile
	Offset int
	Length int
}

func NewSourceLocation(file *SourceFile, offset, length int) *SourceLocation {
	return &SourceLocation{
		File:   file,
		Offset: offset,
		Length: length,
	}
}

// StartingLine returns the 1-based line the location starts on
func (l *SourceLocation) StartingLine() int {
	prefix := l.File.Content
	if l.Offset < len(prefix) {
		prefix = prefix[:l.Offset]
	}

	return strings.Count(prefix, "\n") + 1
}

// ContainingFunction returns the smallest function declaration
// enclosing this location, or nil when there is none
func (l *SourceLocation) ContainingFunction() *ContractFunc {
	return l.File.FunctionAt(l.Offset)
}

// Contains returns true if the other location falls entirely
// within this one
func (l *SourceLocation) Contains(other *SourceLocation) bool {
	if l.File != other.File {
		return false
	}

	if other.Offset < l.Offset {
		return false
	}

	return other.Offset+other.Length <= l.Offset+l.Length
}

func (l *SourceLocation) Equals(other *SourceLocation) bool {
	if l == nil || other == nil {
		return l == other
	}

	return l.File == other.File && l.Offset == other.Offset && l.Length == other.Length
}

func (l *SourceLocation) containsOffset(offset int) bool {
	return offset >= l.Offset && offset < l.Offset+l.Length
}

// ContractFunc is a function-like declaration of a contract
type ContractFunc struct {
	Name       string
	Type       FunctionType
	Location   *SourceLocation
	Selector   []byte
	IsPayable  bool
	Visibility Visibility

	// canonical ABI types of the parameters, e.g. "uint256"
	ParamTypes []string
}

// Contract is the metadata of a single compiled contract declaration
type Contract struct {
	Name     string
	Kind     ContractKind
	Location *SourceLocation

	localFunctions     []*ContractFunc
	selectorToFunction map[string]*ContractFunc
	constructor        *ContractFunc
	fallback           *ContractFunc
	receive            *ContractFunc
}

func NewContract(name string, kind ContractKind, location *SourceLocation) *Contract {
	return &Contract{
		Name:               name,
		Kind:               kind,
		Location:           location,
		selectorToFunction: map[string]*ContractFunc{},
	}
}

// AddLocalFunction registers a function declared by the contract,
// indexing it by selector when it is externally callable
func (c *Contract) AddLocalFunction(fn *ContractFunc) {
	switch fn.Type {
	case FunctionTypeConstructor:
		c.constructor = fn
	case FunctionTypeFallback:
		c.fallback = fn
	case FunctionTypeReceive:
		c.receive = fn
	default:
		if len(fn.Selector) != 0 &&
			(fn.Visibility == VisibilityPublic || fn.Visibility == VisibilityExternal) {
			c.selectorToFunction[string(fn.Selector)] = fn
		}
	}

	c.localFunctions = append(c.localFunctions, fn)

	if fn.Location != nil && fn.Location.File != nil {
		fn.Location.File.AddFunction(fn)
	}
}

func (c *Contract) Constructor() *ContractFunc {
	return c.constructor
}

func (c *Contract) Fallback() *ContractFunc {
	return c.fallback
}

func (c *Contract) Receive() *ContractFunc {
	return c.receive
}

// FunctionFromSelector returns the externally callable function with
// the given 4-byte selector, or nil
func (c *Contract) FunctionFromSelector(selector []byte) *ContractFunc {
	return c.selectorToFunction[string(selector)]
}
