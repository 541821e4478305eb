package seed

type BuiltInSourceType = string

const (
	FileSourceType  BuiltInSourceType = "file"
	HTTPSourceType  BuiltInSourceType = "http"
	HTTPSSourceType BuiltInSourceType = "https"
)

// RegisterBuiltins registers the network sources by default
// or only the specific ones if keys are provided.
// File locations never need registering.
func RegisterBuiltins(sources ...BuiltInSourceType) {
	if len(sources) == 0 {
		sources = append(sources, HTTPSourceType, HTTPSSourceType)
	}

	for _, key := range sources {
		switch key {
		case HTTPSourceType, HTTPSSourceType:
			Register(key, func(location string) (Source, error) {
				return NewHTTPSource(location, nil, nil)
			})
		}
	}
}
