package dynconfig

import (
	"io"
	"os"

	"github.com/Symantec/Dominator/lib/fsutil"
	"github.com/Symantec/Dominator/lib/log"
	"github.com/Symantec/Dominator/lib/log/prefixlogger"
)

func readFromPath(path string, builder Builder) (interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return builder(file)
}

func newDynConfig(
	path string,
	builder Builder,
	name string,
	logger log.Logger) (*DynConfig, error) {
	value, err := readFromPath(path, builder)
	if err != nil {
		return nil, err
	}
	result := &DynConfig{
		path:    path,
		builder: builder,
		logger:  prefixlogger.New(name+": ", logger),
		value:   value,
	}
	go result.loop()
	return result, nil
}

func (d *DynConfig) get() interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

func (d *DynConfig) set(x interface{}) {
	d.mu.Lock()
	d.value = x
	d.mu.Unlock()
	if d.onChange != nil {
		d.onChange(x)
	}
}

func (d *DynConfig) consumeChange(rc io.ReadCloser) {
	if result, err := d.builder(rc); err != nil {
		d.logger.Println(err)
	} else {
		d.set(result)
	}
	if err := rc.Close(); err != nil {
		d.logger.Println(err)
	}
}

func (d *DynConfig) loop() {
	for rc := range fsutil.WatchFile(d.path, d.logger) {
		d.consumeChange(rc)
	}
}
