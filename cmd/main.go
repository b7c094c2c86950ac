// Input Router - multi-seat input routing service
// Routes captured keyboard and mouse events to per-user editor windows
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"inputrouter/internal/api"
	"inputrouter/internal/autostart"
	"inputrouter/internal/config"
	"inputrouter/internal/engine"
	"inputrouter/internal/input"
	"inputrouter/internal/network"
	"inputrouter/internal/tray"
	"inputrouter/internal/window"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", "", "Path to config file (default: per-user config dir)")
	showVer    = flag.Bool("version", false, "Show version")
	withTray   = flag.Bool("tray", false, "Run the service with a system tray icon")
	listMaps   = flag.Bool("list", false, "List device mappings")
	showStatus = flag.Bool("status", false, "Show service status and sessions")
	listWins   = flag.Bool("windows", false, "List attachable editor windows")
	mapDevice  = flag.String("map", "", "Map a device: device_id=user_id")
	unmapDev   = flag.String("unmap", "", "Remove a device mapping: device_id")
	launchUser = flag.String("launch", "", "Launch an editor session for a user")
	projectDir = flag.String("project", "", "Project directory for -launch")
	editorName = flag.String("editor", "", "Editor for -launch (cursor, code, kiro)")
	attachArg  = flag.String("attach", "", "Attach a user to a window: user_id=hwnd")
	stopUser   = flag.String("stop-session", "", "Stop a user's session")
	autoStart  = flag.String("autostart", "", "Manage start on login: on, off or show")
	mockFlag   = flag.Bool("mock-upstream", false, "Run a synthetic capture service for testing")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("inputrouter version %s\n", version)
		return
	}

	if *autoStart != "" {
		handleAutostart(*autoStart)
		return
	}

	cfgMgr := newConfigManager()

	if *mockFlag {
		runMockUpstream(cfgMgr)
		return
	}
	if *listMaps {
		listMappings(cfgMgr)
		return
	}
	if *showStatus {
		showServiceStatus(cfgMgr)
		return
	}
	if *listWins {
		listWindows(cfgMgr)
		return
	}
	if *mapDevice != "" {
		handleMap(cfgMgr, *mapDevice)
		return
	}
	if *unmapDev != "" {
		handleUnmap(cfgMgr, *unmapDev)
		return
	}
	if *launchUser != "" {
		handleLaunch(cfgMgr, *launchUser, *projectDir, *editorName)
		return
	}
	if *attachArg != "" {
		handleAttach(cfgMgr, *attachArg)
		return
	}
	if *stopUser != "" {
		handleStop(cfgMgr, *stopUser)
		return
	}

	// Default: run as background service
	runService(cfgMgr)
}

func newConfigManager() *config.Manager {
	var cfgMgr *config.Manager
	if *configPath != "" {
		cfgMgr = config.NewManagerAt(*configPath)
	} else {
		var err error
		cfgMgr, err = config.NewManager()
		if err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}
	return cfgMgr
}

// apiClient talks to the running service over its local HTTP API.
// Management verbs mutate live state, so they go through the service
// rather than editing the config behind its back.
type apiClient struct {
	base  string
	token string
}

func newAPIClient(cfgMgr *config.Manager) *apiClient {
	cfg := cfgMgr.Get()
	return &apiClient{
		base:  fmt.Sprintf("http://127.0.0.1:%d", cfg.API.Port),
		token: cfg.API.Token,
	}
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach service at %s (is it running?): %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func listMappings(cfgMgr *config.Manager) {
	c := newAPIClient(cfgMgr)

	var mappings map[string]string
	if err := c.do("GET", "/api/mappings", nil, &mappings); err != nil {
		log.Fatalf("Failed to list mappings: %v", err)
	}

	fmt.Println("Device Mappings:")
	fmt.Println("----------------")
	if len(mappings) == 0 {
		fmt.Println("(none)")
	}
	devices := make([]string, 0, len(mappings))
	for d := range mappings {
		devices = append(devices, d)
	}
	sort.Strings(devices)
	for _, d := range devices {
		fmt.Printf("%s -> %s\n", d, mappings[d])
	}

	printSessions(c)
}

func printSessions(c *apiClient) {
	var sessions []engine.SessionStatus
	if err := c.do("GET", "/api/sessions", nil, &sessions); err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Sessions:")
	fmt.Println("---------")
	for _, s := range sessions {
		run := "stopped"
		if s.Running {
			run = "running"
		}
		fmt.Printf("%s: %s (pid %d, hwnd 0x%X, %s)\n", s.UserID, s.Editor, s.PID, s.Window, run)
		if s.ProjectDir != "" {
			fmt.Printf("  project: %s\n", s.ProjectDir)
		}
	}
}

func showServiceStatus(cfgMgr *config.Manager) {
	c := newAPIClient(cfgMgr)

	var st engine.Status
	if err := c.do("GET", "/api/status", nil, &st); err != nil {
		log.Fatalf("Failed to get status: %v", err)
	}

	state := "disconnected"
	if st.UpstreamConnected {
		state = "connected"
	}
	fmt.Printf("Upstream: %s (%s)\n", st.UpstreamAddr, state)
	fmt.Printf("Mappings: %d\n", st.Mappings)
	fmt.Printf("Sessions: %d\n", st.Sessions)
	fmt.Printf("Admin:    %v\n", st.Admin)

	printSessions(c)
}

func listWindows(cfgMgr *config.Manager) {
	var wins []engine.WindowStatus
	if err := newAPIClient(cfgMgr).do("GET", "/api/windows", nil, &wins); err != nil {
		log.Fatalf("Failed to list windows: %v", err)
	}

	fmt.Println("Attachable Windows:")
	fmt.Println("-------------------")
	if len(wins) == 0 {
		fmt.Println("(none)")
		return
	}
	for _, w := range wins {
		fmt.Printf("0x%X  pid %-6d %s", w.Handle, w.PID, w.Title)
		if w.Process != "" {
			fmt.Printf("  [%s]", w.Process)
		}
		fmt.Println()
	}
}

func handleMap(cfgMgr *config.Manager, arg string) {
	deviceID, userID, ok := strings.Cut(arg, "=")
	if !ok || deviceID == "" || userID == "" {
		log.Fatalf("Invalid mapping %q, expected device_id=user_id", arg)
	}

	body := map[string]string{"device_id": deviceID, "user_id": userID}
	if err := newAPIClient(cfgMgr).do("POST", "/api/mappings", body, nil); err != nil {
		log.Fatalf("Failed to add mapping: %v", err)
	}
	fmt.Printf("Mapped %s -> %s\n", deviceID, userID)
}

func handleUnmap(cfgMgr *config.Manager, deviceID string) {
	path := "/api/mappings/" + url.PathEscape(deviceID)
	if err := newAPIClient(cfgMgr).do("DELETE", path, nil, nil); err != nil {
		log.Fatalf("Failed to remove mapping: %v", err)
	}
	fmt.Printf("Unmapped %s\n", deviceID)
}

func handleLaunch(cfgMgr *config.Manager, userID, project, editor string) {
	body := map[string]string{
		"user_id":     userID,
		"project_dir": project,
		"editor":      editor,
	}

	var st engine.SessionStatus
	if err := newAPIClient(cfgMgr).do("POST", "/api/launch", body, &st); err != nil {
		log.Fatalf("Failed to launch: %v", err)
	}
	fmt.Printf("Launched %s for %s (pid %d, hwnd 0x%X)\n", st.Editor, st.UserID, st.PID, st.Window)
	if st.Window == 0 {
		fmt.Println("Window not resolved yet; it will bind on the first routed event")
	}
}

func handleAttach(cfgMgr *config.Manager, arg string) {
	userID, hwndStr, ok := strings.Cut(arg, "=")
	if !ok || userID == "" || hwndStr == "" {
		log.Fatalf("Invalid attach argument %q, expected user_id=hwnd", arg)
	}
	hwnd, err := strconv.ParseUint(hwndStr, 0, 64)
	if err != nil {
		log.Fatalf("Invalid window handle %q: %v", hwndStr, err)
	}

	body := map[string]interface{}{"user_id": userID, "hwnd": hwnd}
	var st engine.SessionStatus
	if err := newAPIClient(cfgMgr).do("POST", "/api/attach", body, &st); err != nil {
		log.Fatalf("Failed to attach: %v", err)
	}
	fmt.Printf("Attached %s to window 0x%X\n", st.UserID, st.Window)
}

func handleStop(cfgMgr *config.Manager, userID string) {
	body := map[string]string{"user_id": userID}
	if err := newAPIClient(cfgMgr).do("POST", "/api/stop", body, nil); err != nil {
		log.Fatalf("Failed to stop session: %v", err)
	}
	fmt.Printf("Stopped session for %s\n", userID)
}

func handleAutostart(mode string) {
	switch mode {
	case "on":
		if err := autostart.Enable(); err != nil {
			log.Fatalf("Failed to enable autostart: %v", err)
		}
		fmt.Println("Start on login enabled")
	case "off":
		if err := autostart.Disable(); err != nil {
			log.Fatalf("Failed to disable autostart: %v", err)
		}
		fmt.Println("Start on login disabled")
	case "show":
		if autostart.IsEnabled() {
			fmt.Println("Start on login: enabled")
		} else {
			fmt.Println("Start on login: disabled")
		}
	default:
		log.Fatalf("Invalid autostart mode %q, expected on, off or show", mode)
	}
}

func runMockUpstream(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	mock, err := network.StartMockUpstream(cfg.Service.Addr())
	if err != nil {
		log.Fatalf("Failed to start mock upstream: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	log.Println("Mock upstream running. Press Ctrl+C to stop.")
	<-sigCh
	mock.Stop()
}

func runService(cfgMgr *config.Manager) {
	log.Println("Input Router starting...")

	eng := engine.New(cfgMgr, window.New(), input.New())

	cfg := cfgMgr.Get()
	apiServer := api.NewServer(cfgMgr, eng)
	go func() {
		if err := apiServer.Start(cfg.API.Port); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	eng.Start()

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			log.Println("Shutting down...")
			eng.Stop()
			apiServer.Shutdown()
		})
	}

	if *withTray {
		runTray(eng, stop)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	log.Println("Input Router running. Press Ctrl+C to stop.")
	<-sigCh
	stop()
}

func runTray(eng *engine.Engine, stop func()) {
	t := tray.New("Input Router - multi-seat input routing")

	statusID := t.AddMenuItem("Starting...", nil)
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	// Keep the status row current
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			st := eng.Status()
			state := "disconnected"
			if st.UpstreamConnected {
				state = "connected"
			}
			t.SetItemTitle(statusID, fmt.Sprintf("Upstream %s, %d sessions", state, st.Sessions))
		}
	}()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		t.Stop()
	}()

	log.Println("Input Router running in tray mode.")
	t.Run()
	stop()
}
