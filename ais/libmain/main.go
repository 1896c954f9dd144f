// Package libmain provides common main function which does extra work
package libmain

import (
	"flag"
	"fmt"
	golog "log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	"aistrack/ais/log"
	"aistrack/gogroup"

	"github.com/armon/go-metrics"
	"github.com/kardianos/osext"
)

var (
	// Background routines which must exit before we exit
	Background gogroup.GoGroup

	// Metrics kept in memory, dumped to stderr on SIGUSR1
	Metrics *metrics.InmemSink

	ProfilePort  string
	PrintVersion bool

	// Set at link time with -ldflags "-X aistrack/ais/libmain.VersionNumber=..."
	VersionNumber = "dev"
	VersionDate   = "unknown"
)

func init() {
	flag.StringVar(&ProfilePort, "profile", "", "Profile and listen on this port e.g. localhost:6060")
	flag.BoolVar(&PrintVersion, "version", false, "Print version then exit")
}

// Main parses flags, sets up logging, metrics and signal handling, then runs
// realMain in the background group. It returns once every routine of the
// group has exited.
func Main(realMain gogroup.Func) {
	flag.Parse()
	log.RegisterTracers()

	exe, err := osext.Executable()
	if err != nil {
		golog.Fatalf("Cannot find executable: %v", err)
	}
	name := path.Base(exe)

	if PrintVersion {
		fmt.Printf("%v version: %v build date %v\n", name, VersionNumber, VersionDate)
		os.Exit(0)
	}

	runtime.SetBlockProfileRate(0)
	if ProfilePort != "" {
		runtime.SetBlockProfileRate(10)
		go func() { golog.Println(http.ListenAndServe(ProfilePort, nil)) }()
	}

	log.Init(name)

	Metrics = metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(Metrics)
	cfg := metrics.DefaultConfig(name)
	cfg.EnableHostname = false
	if _, err := metrics.NewGlobal(cfg, Metrics); err != nil {
		log.Warn("Metrics disabled: %v", err)
	}

	Background = gogroup.New(nil, "background")
	Background.ErrCallback(func(err error) {
		pe, ok := err.(gogroup.PanicError)
		if ok {
			log.Error("Panic in background goroutine: %v\n%v", pe.Msg, pe.Stack)
		} else {
			log.Error("Error in background goroutine: %v", err)
		}
	})

	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigch
		log.Info("Got %v, cancelling main context", sig)
		Background.Cancel(nil)

		sig = <-sigch
		log.Info("Got second %v, killing program", sig)
		os.Exit(1)
	}()

	// Run real main
	Background.Run(realMain)

	// Wait for cancel so there's at least one thing in the group
	Background.Run(func(g gogroup.GoGroup) error {
		<-g.Done()
		return nil
	})

	// Wait for all background processes to exit
	Background.Wait()
	Background.Cancel(nil)
}
