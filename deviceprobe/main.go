package main

import (
	"context"
	"log"
	"os"

	"code.cloudfoundry.org/devicetest/deviceprobe/app"
	"code.cloudfoundry.org/devicetest/healthendpoint"
	"code.cloudfoundry.org/devicetest/plumbing"
	"code.cloudfoundry.org/devicetest/profiler"
	"code.cloudfoundry.org/devicetest/signalmanager"
	envstruct "code.cloudfoundry.org/go-envstruct"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	conf, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("Unable to parse config: %s", err)
	}
	if conf.UseRFC3339 {
		log.SetOutput(new(plumbing.LogWriter))
	} else {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	envstruct.WriteReport(conf)

	var opts []app.ProbeOption
	if conf.HealthAddr != "" {
		promRegistry := prometheus.NewRegistry()
		lis := healthendpoint.StartServer(conf.HealthAddr, promRegistry)
		defer lis.Close()
		opts = append(opts, app.WithHealthRegistrar(app.NewHealthRegistrar(promRegistry)))
	}

	if conf.PProfPort != 0 {
		go profiler.New(conf.PProfPort).Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	res, err := app.NewProbe(conf, opts...).Run(ctx)
	if err != nil {
		log.Fatalf("Probe failed: %s", err)
	}

	log.Printf("Probe: worker received %d of %d messages", res.Received, res.Expected)
	if res.Received != res.Expected {
		os.Exit(1)
	}
}

func handleSignals(cancel func()) {
	killSignal := signalmanager.RegisterKillSignalChannel()
	dumpSignal := signalmanager.RegisterGoRoutineDumpSignalChannel()

	for {
		select {
		case <-dumpSignal:
			signalmanager.DumpGoRoutine()
		case <-killSignal:
			log.Print("Shutting down")
			cancel()
			return
		}
	}
}
