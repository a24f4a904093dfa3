package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"neighwatch/internal/capture"
	"neighwatch/internal/config"
	"neighwatch/internal/discovery"
	"neighwatch/internal/logging"
	"neighwatch/internal/nic"
	"neighwatch/internal/reporting"
	"neighwatch/internal/tui"
)

func main() {
	ifaceList := flag.String("i", "", "Comma-separated interfaces to capture on (e.g., eth0,eth1)")
	listOnly := flag.Bool("list", false, "List capturable interfaces and exit")
	all := flag.Bool("all", false, "Capture on every up, non-virtual interface")
	configPath := flag.String("config", "", "Path to a config file (default: ./neighwatch.yaml)")
	exportFormat := flag.String("export", "", "Write a snapshot on exit: txt or csv")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogFile, cfg.LogLevel)
	defer log.Sync()

	interfaces, err := nic.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "interface enumeration failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Capturing link-layer frames usually needs root or CAP_NET_RAW.")
		os.Exit(1)
	}

	if *listOnly {
		printInterfaces(interfaces, cfg.ShowVirtual)
		return
	}

	targets := selectTargets(interfaces, *ifaceList, *all, cfg.ShowVirtual)
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "No interface selected. Use -i eth0, -all, or -list to see candidates.")
		os.Exit(1)
	}

	mgr := discovery.NewManager(discovery.Config{
		Capture: capture.Config{
			SnapLen:     cfg.SnapLen,
			Promiscuous: cfg.Promiscuous,
			ReadTimeout: cfg.ReadTimeout,
		},
		EventBuffer: cfg.EventBuffer,
		SweepFloor:  cfg.SweepFloor,
	}, log)

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.ID
		if t.SpeedBps > 0 {
			mgr.SetPortSpeed(t.ID, t.SpeedBps)
		}
	}

	if failures := mgr.StartCapture(names...); failures != nil {
		for iface, err := range failures {
			fmt.Fprintf(os.Stderr, "capture on %s failed: %v\n", iface, err)
		}
		// Keep running if at least one session came up.
		if len(failures) == len(names) {
			mgr.Close()
			os.Exit(1)
		}
	}
	log.Info("capture started", zap.Strings("interfaces", names))

	p := tea.NewProgram(tui.NewModel(mgr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("tui exited", zap.Error(err))
	}

	snapshot := mgr.Snapshot()
	mgr.Close()

	if *exportFormat != "" {
		filename, err := reporting.SaveSnapshot(snapshot, *exportFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Snapshot written to %s\n", filename)
	}
}

// selectTargets resolves the -i / -all flags against the enumerated
// interfaces. Explicit -i names are taken as-is so odd setups (bridges,
// containers) stay usable.
func selectTargets(interfaces []nic.Interface, ifaceList string, all, showVirtual bool) []nic.Interface {
	if ifaceList != "" {
		byID := make(map[string]nic.Interface, len(interfaces))
		for _, in := range interfaces {
			byID[in.ID] = in
		}
		var targets []nic.Interface
		for _, name := range strings.Split(ifaceList, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if in, ok := byID[name]; ok {
				targets = append(targets, in)
			} else {
				targets = append(targets, nic.Interface{ID: name, DisplayName: name})
			}
		}
		return targets
	}

	if !all {
		return nil
	}
	var targets []nic.Interface
	for _, in := range interfaces {
		if !in.IsUp || in.IsLoopback {
			continue
		}
		if in.IsVirtual && !showVirtual {
			continue
		}
		targets = append(targets, in)
	}
	return targets
}

func printInterfaces(interfaces []nic.Interface, showVirtual bool) {
	fmt.Println("Capturable interfaces:")
	for _, in := range interfaces {
		if in.IsVirtual && !showVirtual {
			continue
		}
		state := "down"
		if in.IsUp {
			state = "up"
		}
		line := fmt.Sprintf("  %-16s %-4s %s", in.ID, state, in.String())
		if in.SpeedBps > 0 {
			line += "  " + in.SpeedDisplay()
		}
		fmt.Println(line)
	}
}
