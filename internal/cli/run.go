package cli

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"gokern/internal/futures"
	"gokern/internal/hostport"
	"gokern/internal/kernel"
	"gokern/internal/work"
)

var (
	configPath string
	traceCSV   string
	runTicks   uint64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the kernel with a demo workload and run for a fixed number of ticks",
	RunE:  runKernel,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to the kernel YAML config (default: $KERNSIM_CONFIG)")
	runCmd.Flags().StringVar(&traceCSV, "trace-csv", "", "write kernel trace events to this CSV file")
	runCmd.Flags().Uint64Var(&runTicks, "ticks", 200, "number of ticks to run before stopping")
	rootCmd.AddCommand(runCmd)
}

func runKernel(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = os.Getenv("KERNSIM_CONFIG")
	}
	cfg := kernel.LoadConfig(path)

	clock := hostport.NewClock()
	port := hostport.New(clock)
	k, err := kernel.New(cfg, port)
	if err != nil {
		return err
	}

	tracer := kernel.NewTracer(1024)
	if traceCSV != "" {
		if err := tracer.EnableCSV(traceCSV); err != nil {
			return err
		}
		defer tracer.Close()
	}
	k.SetTracer(tracer)

	var (
		tallyMu sync.Mutex
		tally   = make(map[kernel.TraceKind]int)
		done    = make(chan struct{})
	)
	go func() {
		for {
			select {
			case ev := <-tracer.Events():
				tallyMu.Lock()
				tally[ev.Kind]++
				tallyMu.Unlock()
				tracer.Record(ev)
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	if err := spawnDemo(k, cfg); err != nil {
		return err
	}

	clock.Bind(func() {
		port.RunInterrupt(func() {
			k.Tick()
			if clock.Count() >= runTicks {
				k.Stop()
			}
		})
	})
	clock.Start(time.Duration(cfg.TickMS) * time.Millisecond)
	defer clock.Stop()

	log.Printf("kernel booting: %d priority levels, %d ms tick, %d ticks to run",
		cfg.PriorityLevels, cfg.TickMS, runTicks)

	if err := k.Start(); err != nil {
		return err
	}

	log.Printf("kernel stopped at tick %d, %d tasks remaining, %d trace events dropped",
		clock.Count(), k.TaskCount(), tracer.Dropped())
	tallyMu.Lock()
	for kind := kernel.TraceSpawn; kind <= kernel.TraceFault; kind++ {
		if n := tally[kind]; n > 0 {
			log.Printf("  %-10s %6d", kind, n)
		}
	}
	tallyMu.Unlock()
	return nil
}

// spawnDemo sets up a small mixed workload: two round-robin spinners, a
// periodic sleeper, and an async signal chain driven through the futures
// bridge.
func spawnDemo(k *kernel.Kernel, cfg kernel.Config) error {
	lo, mid, hi := demoLevels(cfg.PriorityLevels)

	base := kernel.DefaultTaskConfig()
	if _, err := k.Spawn(work.SpinTicks(k, runTicks), base.WithPriority(lo)); err != nil {
		return err
	}
	if _, err := k.Spawn(work.SpinTicks(k, runTicks), base.WithPriority(lo)); err != nil {
		return err
	}
	if _, err := k.Spawn(work.SleepEvery(k, 10, int(runTicks/10)), base.WithPriority(mid)); err != nil {
		return err
	}

	sig := &futures.Signal{}
	if _, err := k.Spawn(func() { _ = futures.BlockOn(k, sig) }, base.WithPriority(hi)); err != nil {
		return err
	}
	_, err := k.Spawn(func() {
		_ = k.Sleep(runTicks / 2)
		sig.Fire()
	}, base.WithPriority(mid))
	return err
}

// demoLevels picks low/mid/high demo priorities that fit the configured level
// count.
func demoLevels(levels int) (lo, mid, hi int) {
	hi = levels - 1
	mid = hi / 2
	lo = 0
	if levels > 2 {
		lo = 1
	}
	return lo, mid, hi
}
