package register

import (
	"encoding/json"

	"github.com/worthb0123/go-shared-fork/pkg/wire"
)

// Payload is anything a subscription delivers: a binary frame or a JSON push.
type Payload interface {
	IsBinary() bool
	Bytes() []byte
	MessageType() wire.MessageType
	JSON() json.RawMessage
}

// HandlePayload routes a subscription payload into the store: binary frames
// are applied, config pushes and {configs:[...]} data pushes replace the
// configs. Other JSON data is ignored. Errors are logged and returned but
// never fatal to the subscription.
func (s *Store) HandlePayload(p Payload) error {
	if p.IsBinary() {
		return s.ApplyFrame(p.Bytes())
	}

	switch p.MessageType() {
	case wire.TypeConfig, wire.TypeData:
		configs, ok, err := wire.DecodeConfigs(p.JSON())
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("dropping config payload", "error", err)
			}
			return err
		}
		if ok {
			s.SetConfigs(configs)
		}
	}
	return nil
}
