package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LogFactory opens the log handle for one worker. The returned close
// function is called when the worker exits.
type LogFactory func(worker int) (*log.Logger, func() error, error)

// FileLogs writes each worker's log to kmc_log_NN.log in dir, appending so
// that resumed runs keep earlier lines.
func FileLogs(dir string) LogFactory {
	return func(worker int) (*log.Logger, func() error, error) {
		path := filepath.Join(dir, fmt.Sprintf("kmc_log_%02d.log", worker))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open worker log: %w", err)
		}
		return log.New(file, "", log.LstdFlags), file.Close, nil
	}
}

// WriterLogs sends every worker's log to w with a worker prefix.
func WriterLogs(w io.Writer) LogFactory {
	return func(worker int) (*log.Logger, func() error, error) {
		return log.New(w, fmt.Sprintf("[worker %02d] ", worker), 0), func() error { return nil }, nil
	}
}

var (
	printer = message.NewPrinter(language.English)
	title   = cases.Title(language.English)
)

func logCarrier(logger *log.Logger, record domain.CarrierRecord, took time.Duration) {
	logger.Printf(
		"%s hopped %d times, over %.3e seconds, into image %v, for a displacement of %.2f, in %.2f wall-clock seconds. Terminated: %s",
		title.String(record.Type.String()),
		record.Hops,
		record.ElapsedTime,
		record.Image,
		record.Displacement,
		took.Seconds(),
		record.Reason,
	)
}

func logProgress(logger *log.Logger, completed, total int) {
	percent := 100
	if total > 0 {
		percent = completed * 100 / total
	}
	logger.Print(printer.Sprintf("Completed %d/%d jobs  %d%%", completed, total, percent))
}
