package envelope

import "fmt"

// Validate enforces the envelope schema's validation pass: a non-empty
// iKey, non-nil data, each variant's required field present, and
// responseCode defaulted to "200" on requests. It does not check property
// key or value lengths; the mapper bounds those through the sanitize
// package when it builds the envelope.
//
// Validate may mutate d in place to apply defaults (e.g. responseCode);
// it never mutates the envelope's IKey/Time/Tags.
func Validate(e *Envelope) error {
	if e.IKey == "" {
		return fmt.Errorf("envelope: empty iKey")
	}
	if e.Data == nil {
		return fmt.Errorf("envelope: nil data")
	}
	switch d := e.Data.(type) {
	case *RequestData:
		if d.ResponseCode == "" {
			d.ResponseCode = "200"
		}
		if d.Name == "" {
			return fmt.Errorf("envelope: RequestData missing name")
		}
	case *RemoteDependencyData:
		if d.Name == "" {
			return fmt.Errorf("envelope: RemoteDependencyData missing name")
		}
	case *MessageData:
		if d.Message == "" {
			return fmt.Errorf("envelope: MessageData missing message")
		}
	case *ExceptionData:
		if len(d.Exceptions) == 0 {
			return fmt.Errorf("envelope: ExceptionData missing exceptions")
		}
	case *EventData:
		if d.Name == "" {
			return fmt.Errorf("envelope: EventData missing name")
		}
	default:
		return fmt.Errorf("envelope: unknown data type %T", d)
	}
	return nil
}
