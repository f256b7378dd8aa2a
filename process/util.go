package process

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/anyawal/corerun/configs"
)

var errNoPid = errors.New("intermediate relayed a zero pid")

// noDeadline is the zero deadline, under which a syncpipe read blocks
// until a message arrives or the peer closes its end. Every milestone
// wait in this package uses it, and the corerun package applies no
// timeout around Start either, so these waits are unbounded.
func noDeadline() time.Time { return time.Time{} }

func itoa(n int) string { return strconv.Itoa(n) }

func writeConfig(w *os.File, cfg *configs.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readConfig(r *os.File) (*configs.Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var cfg configs.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
