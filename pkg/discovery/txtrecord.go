package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/worthb0123/go-shared-fork/pkg/version"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeProducerTXT creates TXT records for a producer advertisement.
func EncodeProducerTXT(info *ProducerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyVersion] = info.Version
	if txt[TXTKeyVersion] == "" {
		txt[TXTKeyVersion] = version.Current
	}
	txt[TXTKeyWebSocketPath] = info.WebSocketPath
	if txt[TXTKeyWebSocketPath] == "" {
		txt[TXTKeyWebSocketPath] = DefaultWebSocketPath
	}

	if info.StreamPort != 0 {
		txt[TXTKeyStreamPort] = strconv.FormatUint(uint64(info.StreamPort), 10)
	}
	if info.Devices > 0 {
		txt[TXTKeyDevices] = strconv.Itoa(info.Devices)
	}
	if info.Registers > 0 {
		txt[TXTKeyRegisters] = strconv.Itoa(info.Registers)
	}

	return txt
}

// DecodeProducerTXT parses TXT records from a producer advertisement.
// The version must be compatible with the current feed version.
func DecodeProducerTXT(txt TXTRecordMap) (*ProducerService, error) {
	svc := &ProducerService{}

	ver, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if !version.CompatibleWith(ver) {
		return nil, fmt.Errorf("%w: %q", ErrIncompatible, ver)
	}
	svc.Version = ver

	svc.WebSocketPath, ok = txt[TXTKeyWebSocketPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyWebSocketPath)
	}
	if !strings.HasPrefix(svc.WebSocketPath, "/") {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyWebSocketPath, svc.WebSocketPath)
	}

	if s, ok := txt[TXTKeyStreamPort]; ok {
		p, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyStreamPort, s)
		}
		svc.StreamPort = uint16(p)
	}

	var err error
	if svc.Devices, err = optionalCount(txt, TXTKeyDevices); err != nil {
		return nil, err
	}
	if svc.Registers, err = optionalCount(txt, TXTKeyRegisters); err != nil {
		return nil, err
	}

	return svc, nil
}

func optionalCount(txt TXTRecordMap, key string) (int, error) {
	s, ok := txt[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, key, s)
	}
	return n, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(txt))
	for _, k := range keys {
		result = append(result, k+"="+txt[k])
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInstance)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
