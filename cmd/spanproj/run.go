package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "spanproj/internal/config"
	"spanproj/internal/diag"
	"spanproj/internal/report"
)

// globalFlags: 所有子命令共享的覆盖项。
type globalFlags struct {
	config      string
	concurrency int
	batchSize   int
	fillGapSize int
	keepPunct   bool
	punctFold   string
	logLevel    string
	logDir      string
	outputDir   string
	manifest    string
	metricsFile string
	status      bool
}

func (g *globalFlags) register(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVarP(&g.config, "config", "c", "", "配置文件（.json/.yaml）；缺省依次尝试 ./config.yaml、./config.json")
	f.IntVar(&g.concurrency, "concurrency", 0, "worker 数（0 表示 CPU 核数）")
	f.IntVar(&g.batchSize, "batch-size", 0, "每批句对数")
	f.IntVar(&g.fillGapSize, "fill-gap-size", 1, "可吸收的最大间隙（目标词数）")
	f.BoolVar(&g.keepPunct, "keep-punct", false, "不剔除投影 span 中的纯标点目标词")
	f.StringVar(&g.punctFold, "punct-fold", "", "标点判定前的归一化：none|nfkc")
	f.StringVar(&g.logLevel, "log-level", "", "日志等级：debug|info|warn|error")
	f.StringVar(&g.logDir, "log-dir", "", "日志目录")
	f.StringVar(&g.outputDir, "output-dir", "", "输出目录（覆盖 options.writer.output_dir）")
	f.StringVar(&g.manifest, "manifest", "", "运行清单 JSON 路径")
	f.StringVar(&g.metricsFile, "metrics-file", "", "Prometheus textfile 指标路径")
	f.BoolVar(&g.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
}

// overlay 仅将显式设置的旗标转为覆盖项。
func (g *globalFlags) overlay(cmd *cobra.Command) cfgpkg.Config {
	var over cfgpkg.Config
	fl := cmd.Flags()
	if fl.Changed("concurrency") {
		over.Concurrency = g.concurrency
	}
	if fl.Changed("batch-size") {
		over.BatchSize = g.batchSize
	}
	if fl.Changed("fill-gap-size") {
		v := g.fillGapSize
		over.Projection.FillGapSize = &v
	}
	if fl.Changed("keep-punct") {
		v := !g.keepPunct
		over.Projection.RemovePunct = &v
	}
	over.Projection.PunctFold = g.punctFold
	over.Logging = cfgpkg.Logging{Level: g.logLevel, Dir: g.logDir}
	over.OutputDir = g.outputDir
	over.Manifest = g.manifest
	over.MetricsFile = g.metricsFile
	return over
}

// loadConfig: 默认值 → 配置文件 → ENV → CLI。
func loadConfig(g *globalFlags, cli cfgpkg.Config) (cfgpkg.Config, error) {
	_ = loadDotEnv(".env")
	cfg := cfgpkg.Defaults()

	path := g.config
	if path == "" {
		path = os.Getenv("SPANPROJ_CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"config.yaml", "config.json"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	switch {
	case path != "":
		base, err := cfgpkg.LoadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("配置解析失败 %s: %w", path, err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	case os.Getenv("SPANPROJ_CONFIG_JSON") != "":
		base, err := cfgpkg.LoadJSON([]byte(os.Getenv("SPANPROJ_CONFIG_JSON")))
		if err != nil {
			return cfg, fmt.Errorf("配置解析失败 SPANPROJ_CONFIG_JSON: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	over, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, fmt.Errorf("环境变量解析失败: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, over)
	cfg = cfgpkg.Merge(cfg, cli)
	if err := cfgpkg.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

// execJobs 为 run/project 的共同执行路径。
func execJobs(ctx context.Context, g *globalFlags, cfg cfgpkg.Config, stdout, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()
	logger := diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)
	defer logger.Close()

	if err := preflightCheckOutputDir(cfg); err != nil {
		logger.Fail("pipeline", "preflight", err, &start)
		return configErr("输出目录不可写或无法创建: %w", err)
	}
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		logger.Fail("pipeline", "assemble", err, &start)
		return configErr("装配失败: %w", err)
	}
	jobs, err := cfgpkg.Jobs(cfg)
	if err != nil {
		logger.Fail("pipeline", "plan", err, &start)
		return configErr("作业规划失败: %w", err)
	}

	diag.ResetMetrics()
	term := diag.NewTerminal(stderr, g.status)
	set.Status = term
	term.RunStart(set.Concurrency, set.BatchSize)
	logger.Debug("config", "effective", map[string]string{
		"jobs":        fmt.Sprintf("%d", len(jobs)),
		"concurrency": fmt.Sprintf("%d", set.Concurrency),
		"batch_size":  fmt.Sprintf("%d", set.BatchSize),
		"projector":   string(cfgEffective(cfg.Options.Projector)),
		"writer":      string(cfgEffective(cfg.Options.Writer)),
	})

	t := logger.Start("pipeline", "run")
	results, runError := pipelineRun(ctx, comp, set, jobs, logger)
	if runError != nil {
		logger.Fail("pipeline", "first error", runError, t.Since())
	} else {
		t.Finish("run", int64(len(results)))
	}

	var res report.Resolver
	if r, ok := comp.Writer.(report.Resolver); ok {
		res = r
	}
	m := report.Build(corrID, start, set, results, runError, res)
	if cfg.Manifest != "" {
		if err := report.Write(cfg.Manifest, m); err != nil {
			fmt.Fprintf(stderr, "提示：清单写出失败：%v\n", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := diag.WriteMetricsFile(cfg.MetricsFile); err != nil {
			fmt.Fprintf(stderr, "提示：指标写出失败：%v\n", err)
		}
	}
	term.RunFinish(runError == nil, time.Since(start))
	report.PrintSummary(stdout, m)
	if runError != nil {
		return runErr(fmt.Errorf("运行失败: %w", runError))
	}
	return nil
}

func cfgEffective(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func newRunCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "执行配置中的全部作业（显式 jobs 与 corpus 发现）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, g.overlay(cmd))
			if err != nil {
				return configErr("%w", err)
			}
			return execJobs(cmd.Context(), g, cfg, stdout, stderr)
		},
	}
}

func newProjectCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var src, tgt, aln, out string
	cmd := &cobra.Command{
		Use:   "project",
		Short: "投影单个（源标注、目标译文、对齐）三元组",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			over := g.overlay(cmd)
			id := out
			// 未指定输出目录时，以 --output 的父目录为输出目录
			if over.OutputDir == "" {
				over.OutputDir = filepath.Dir(out)
				id = filepath.Base(out)
			}
			over.Jobs = []cfgpkg.Job{{Name: filepath.Base(out), Source: src, Target: tgt, Alignment: aln, Output: id}}
			cfg, err := loadConfig(g, over)
			if err != nil {
				return configErr("%w", err)
			}
			// 单作业模式不做语料发现
			cfg.Jobs, cfg.Corpus = over.Jobs, nil
			return execJobs(cmd.Context(), g, cfg, stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&src, "source", "", "源语言标注文件（\"<word> <tag>\" 块格式）")
	f.StringVar(&tgt, "target", "", "目标语言文本（每行一句，已分词）")
	f.StringVar(&aln, "alignment", "", "对齐文件（talp \"i-j\" 格式）")
	f.StringVar(&out, "output", "", "输出文件")
	for _, n := range []string{"source", "target", "alignment", "output"} {
		_ = cmd.MarkFlagRequired(n)
	}
	return cmd
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 目录存在时尝试创建并删除临时文件；不存在时检查父目录。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	if name := strings.TrimSpace(cfg.Components.Writer); name != "" && name != "fs" {
		return nil
	}
	dir := strings.TrimSpace(cfg.OutputDir)
	if dir == "" {
		var wopts struct {
			OutputDir string `json:"output_dir"`
		}
		if len(cfg.Options.Writer) > 0 {
			_ = json.Unmarshal(cfg.Options.Writer, &wopts)
		}
		dir = strings.TrimSpace(wopts.OutputDir)
	}
	if dir == "" {
		// 未指定时由装配阶段报错
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	case err == nil:
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	// 目录不存在：向上找到最近的已存在祖先并检查可写性
	parent := filepath.Dir(dir)
	for {
		pst, err := os.Stat(parent)
		if err == nil {
			if !pst.IsDir() {
				return fmt.Errorf("父路径不是目录: %s", parent)
			}
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
		next := filepath.Dir(parent)
		if next == parent {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		parent = next
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	return os.RemoveAll(tmpd)
}
