package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/address"
	"github.com/Smalllight01/plc-admin-sub001/internal/apiclient"
	"github.com/Smalllight01/plc-admin-sub001/internal/chart"
	"github.com/Smalllight01/plc-admin-sub001/internal/export"
	"github.com/Smalllight01/plc-admin-sub001/internal/history"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
	"github.com/Smalllight01/plc-admin-sub001/pkg/config"
)

var (
	configPath = flag.String("config", "", "可选的配置文件，提供后端地址和历史查询参数")
	baseURL    = flag.String("backend", "", "后端地址，覆盖配置文件")
	username   = flag.String("user", "", "登录用户名")
	password   = flag.String("password", "", "登录密码，为空时读取 PLC_PASSWORD")
	deviceID   = flag.Int("device", 0, "设备ID")
	addrList   = flag.String("addresses", "", "地址列表，逗号分隔，多站号使用 40001_s2")
	startTime  = flag.String("start", "", "开始时间，ISO8601")
	endTime    = flag.String("end", "", "结束时间，ISO8601")
	timeRange  = flag.String("range", "24h", "快捷时间范围，start为空时生效，如 1h/7d")
	winStart   = flag.Int("offset", 0, "窗口起点")
	winSize    = flag.Int("size", 0, "窗口大小，0表示导出全部")
	format     = flag.String("format", "xlsx", "导出格式: xlsx 或 duckdb")
	output     = flag.String("out", "", "输出文件")
	table      = flag.String("table", export.DefaultTable, "duckdb表名")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(context.Background()); err != nil {
		logrus.Fatalf("Export failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *baseURL != "" {
		cfg.Backend.BaseURL = *baseURL
	}
	loc, err := cfg.History.Location()
	if err != nil {
		return err
	}

	selectors, err := parseSelectors(*addrList)
	if err != nil {
		return err
	}
	if *deviceID <= 0 {
		return fmt.Errorf("-device is required")
	}
	kind := strings.ToLower(*format)
	if kind != "xlsx" && kind != "duckdb" {
		return fmt.Errorf("unsupported format %q", kind)
	}
	out := *output
	if out == "" {
		out = fmt.Sprintf("history_%d_%s.%s", *deviceID, time.Now().Format("20060102_150405"), kind)
	}

	// 命令行只需要内存会话
	sess := session.New(nil, "")
	if err := sess.Init(ctx); err != nil {
		return err
	}
	client := apiclient.New(cfg.Backend.BaseURL,
		apiclient.WithHTTPClient(apiclient.NewHTTPClient(cfg.Backend.Timeout)),
		apiclient.WithTokenStore(sess),
	)

	pass := *password
	if pass == "" {
		pass = os.Getenv("PLC_PASSWORD")
	}
	auth := service.NewAuthService(client, sess)
	if _, err := auth.Login(ctx, &model.LoginRequest{Username: *username, Password: pass}); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer auth.Logout(ctx)

	q, err := buildQuery(selectors, loc)
	if err != nil {
		return err
	}

	engine := history.NewEngine(client, history.Options{
		Limit:        cfg.History.Limit,
		Concurrency:  cfg.History.Concurrency,
		WindowSize:   cfg.History.WindowSize,
		AllowPartial: cfg.History.AllowPartial,
		Location:     loc,
	})
	result, err := engine.Query(ctx, q)
	if err != nil {
		return err
	}
	for key, msg := range result.Failed {
		logrus.Warnf("Address %s failed: %s", key, msg)
	}

	size := *winSize
	if size <= 0 {
		size = max(1, result.Total)
	}
	if _, err := engine.SetSize(size); err != nil {
		return err
	}
	win := engine.SetStart(*winStart)

	labeler := chart.Labeler{}
	if device, err := client.GetDevice(ctx, *deviceID); err != nil {
		logrus.Warnf("Failed to load device %d, using raw addresses as labels: %v", *deviceID, err)
	} else {
		configs, err := address.DecodeConfigs(device.Addresses)
		if err != nil {
			logrus.Warnf("Invalid address configuration: %v", err)
		}
		labeler = chart.Labeler{DeviceName: device.Name, Catalog: address.NewCatalog(configs)}
	}

	c := chart.NewTransformer(loc).Build(engine.Visible(), selectors, labeler)
	if len(c.Rows) == 0 {
		return fmt.Errorf("no history data in window %d+%d of %d samples", win.Start, win.Size, result.Total)
	}

	switch kind {
	case "duckdb":
		n, err := export.WriteDuckDB(ctx, out, *table, c)
		if err != nil {
			return err
		}
		logrus.Infof("Wrote %d values to %s (table %s)", n, out, *table)
	default:
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := export.WriteXLSX(f, c, ""); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logrus.Infof("Wrote %d rows to %s", len(c.Rows), out)
	}
	return nil
}

// parseSelectors 解析逗号分隔的地址
func parseSelectors(raw string) ([]address.Selector, error) {
	var selectors []address.Selector
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			selectors = append(selectors, address.NewSelector(part))
		}
	}
	if len(selectors) == 0 {
		return nil, fmt.Errorf("-addresses is required")
	}
	return selectors, nil
}

func buildQuery(selectors []address.Selector, loc *time.Location) (history.Query, error) {
	q := history.Query{DeviceID: *deviceID, Selectors: selectors}
	end := time.Now().In(loc)
	if *endTime != "" {
		t, err := model.ParseTime(*endTime, loc)
		if err != nil {
			return q, err
		}
		end = t
	}
	q.EndTime = &end

	if *startTime != "" {
		t, err := model.ParseTime(*startTime, loc)
		if err != nil {
			return q, err
		}
		q.StartTime = &t
		return q, nil
	}
	d, err := service.ParseTimeRange(*timeRange)
	if err != nil {
		return q, err
	}
	start := end.Add(-d)
	q.StartTime = &start
	return q, nil
}
