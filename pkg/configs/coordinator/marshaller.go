package coordinator

import (
	"os"

	"gopkg.in/yaml.v3"
)

// load coordinator config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//
// returns *CoordinatorConfig, error:
//
//	When loading success, returns `(*CoordinatorConfig, nil)`.
//	Otherwise, returns `(nil, error)`.
func LoadCoordinatorConfig(filepath string) (*CoordinatorConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *CoordinatorConfig, err error) {
	var _out *CoordinatorConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, err
	}
	out = TrySeal(_out)
	return out, nil
}
