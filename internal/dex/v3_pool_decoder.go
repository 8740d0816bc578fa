package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityRebalancer/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map lets forks that emit the same payload under another signature reuse the decoder.
	Topic0Map map[string]string
}

// V3PoolDecoder decodes Uniswap V3 style pool Mint and Burn events.
type V3PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]model.LiquidityEventKind
}

// NewV3PoolDecoder builds a V3 pool decoder.
func NewV3PoolDecoder(cfg DecoderConfig) (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]model.LiquidityEventKind{
		strings.ToLower(poolABI.Events["Mint"].ID.Hex()): model.EventMint,
		strings.ToLower(poolABI.Events["Burn"].ID.Hex()): model.EventBurn,
	}

	for topic0, name := range cfg.Topic0Map {
		kind := normalizeEventName(name)
		if kind == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = kind
	}

	return &V3PoolDecoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

// Topics returns every topic0 the decoder accepts, for log filters.
func (d *V3PoolDecoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *V3PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a Mint or Burn LogRecord into a LiquidityEvent.
func (d *V3PoolDecoder) Decode(log model.LogRecord) (model.LiquidityEvent, error) {
	if len(log.Topics) == 0 {
		return model.LiquidityEvent{}, fmt.Errorf("missing topics")
	}
	kind, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return model.LiquidityEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return model.LiquidityEvent{}, fmt.Errorf("invalid pool address: %s", log.Address)
	}

	event := d.poolABI.Events[string(kind)]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.LiquidityEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	// Mint carries the sender ahead of the amounts; Burn does not.
	amountIndex := 0
	want := 3
	if kind == model.EventMint {
		amountIndex = 1
		want = 4
	}
	if len(values) != want {
		return model.LiquidityEvent{}, fmt.Errorf("unexpected %s values: %d", kind, len(values))
	}
	amount, err := asBigInt(values[amountIndex])
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.LiquidityEvent{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	return model.LiquidityEvent{
		Kind:        kind,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Pool:        common.HexToAddress(log.Address).Hex(),
		Owner:       indexed.Owner.Hex(),
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Amount:      amount,
	}, nil
}

func normalizeEventName(name string) model.LiquidityEventKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	default:
		return ""
	}
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
