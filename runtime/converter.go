package runtime

import (
	"fmt"
	"time"

	"github.com/BDNK1/flowtest/runtime/template"
	"github.com/mitchellh/mapstructure"
)

// ToStringValueMap renders every value as text, the way header and query
// parameter maps are sent on the wire. nil becomes an empty string.
func ToStringValueMap(m map[string]any) map[string]string {
	result := make(map[string]string, len(m))
	for key, value := range m {
		if value == nil {
			result[key] = ""
			continue
		}
		result[key] = template.Stringify(value)
	}
	return result
}

// DecodeInput decodes resolved step parameters into a typed handler input
// using json tags. Strings are coerced where needed ("25" -> int, "5s" ->
// time.Duration).
func DecodeInput(params map[string]any, target any) error {
	if err := decode(params, target, "json"); err != nil {
		return err
	}
	return nil
}

func decode(m map[string]any, target any, tag string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: tag,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	return nil
}
