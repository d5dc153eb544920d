package hook

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	OutLevels = []logrus.Level{
		logrus.DebugLevel,
		logrus.InfoLevel,
	}

	ErrLevels = []logrus.Level{
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
)

type writerHook struct {
	mu     *sync.Mutex
	writer io.Writer
	levels []logrus.Level
}

func (h *writerHook) Levels() []logrus.Level {
	return h.levels
}

func (h *writerHook) Fire(entry *logrus.Entry) error {
	serialized, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err = h.writer.Write(serialized)
	return err
}

// RegisterSplitLogger sends debug and info entries to outWriter and
// everything more severe to errWriter. The logger's own output is discarded.
func RegisterSplitLogger(logger *logrus.Logger, outWriter io.Writer, errWriter io.Writer) {
	logger.SetOutput(io.Discard)

	var mu sync.Mutex

	logger.AddHook(&writerHook{mu: &mu, writer: outWriter, levels: OutLevels})
	logger.AddHook(&writerHook{mu: &mu, writer: errWriter, levels: ErrLevels})
}
