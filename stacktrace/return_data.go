package stacktrace

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/umbracle/ethgo/abi"
)

var (
	// selector of Error(string)
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

	// selector of Panic(uint256)
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}

	errorReturnDataType = abi.MustNewType("tuple(string reason)")
	panicReturnDataType = abi.MustNewType("tuple(uint256 code)")
)

// ReturnData is the data a message returned or reverted with, plus
// the decoders for the revert payloads solc emits
type ReturnData struct {
	data []byte
}

func NewReturnData(data []byte) ReturnData {
	return ReturnData{data: data}
}

func (r ReturnData) Bytes() []byte {
	return r.data
}

func (r ReturnData) IsEmpty() bool {
	return len(r.data) == 0
}

// IsErrorReturnData returns true for an Error(string) revert payload
func (r ReturnData) IsErrorReturnData() bool {
	return len(r.data) >= 4 && bytes.Equal(r.data[:4], errorSelector)
}

// IsPanicReturnData returns true for a Panic(uint256) revert payload
func (r ReturnData) IsPanicReturnData() bool {
	return len(r.data) >= 4 && bytes.Equal(r.data[:4], panicSelector)
}

// DecodeError decodes the reason string of an Error(string) payload
func (r ReturnData) DecodeError() (string, error) {
	if !r.IsErrorReturnData() {
		return "", fmt.Errorf("return data is not an Error(string) payload")
	}

	decoded, err := errorReturnDataType.Decode(r.data[4:])
	if err != nil {
		return "", fmt.Errorf("could not decode revert reason: %w", err)
	}

	values, ok := decoded.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("could not decode revert reason")
	}

	reason, ok := values["reason"].(string)
	if !ok {
		return "", fmt.Errorf("could not decode revert reason")
	}

	return reason, nil
}

// DecodePanic decodes the code of a Panic(uint256) payload
func (r ReturnData) DecodePanic() (*big.Int, error) {
	if !r.IsPanicReturnData() {
		return nil, fmt.Errorf("return data is not a Panic(uint256) payload")
	}

	decoded, err := panicReturnDataType.Decode(r.data[4:])
	if err != nil {
		return nil, fmt.Errorf("could not decode panic code: %w", err)
	}

	values, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("could not decode panic code")
	}

	code, ok := values["code"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("could not decode panic code")
	}

	return code, nil
}

// Equals compares the raw bytes of two return data values
func (r ReturnData) Equals(other ReturnData) bool {
	return bytes.Equal(r.data, other.data)
}
