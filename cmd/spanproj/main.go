package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spanproj/internal/pipeline"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

// 退出码：0 成功；1 运行失败；3 配置失败（含参数、装配、前置目录检查）。
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

var pipelineRun = pipeline.Run

// exitError 携带退出码。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(format string, a ...any) error {
	return &exitError{code: exitConfig, err: fmt.Errorf(format, a...)}
}

func runErr(err error) error { return &exitError{code: exitRun, err: err} }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 解析并执行命令，返回退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !errors.Is(ee.err, context.Canceled) {
			fmt.Fprintf(stderr, "错误: %v\n", ee.err)
		}
		return ee.code
	}
	// cobra 参数/旗标错误归为配置失败
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "spanproj",
		Short: "基于词对齐的 span 标注投影",
		Long: `spanproj 将源语言 "<word> <tag>" 标注经词对齐（talp "i-j" 格式）
投影到目标语言句子，输出同格式的目标语言标注。

配置优先级：CLI > ENV(SPANPROJ_*, .env) > 配置文件(JSON/YAML) > 默认值。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(root)
	root.AddCommand(
		newRunCmd(g, stdout, stderr),
		newProjectCmd(g, stdout, stderr),
		newExtractCmd(stdout),
		newInitConfigCmd(stdout),
		&cobra.Command{
			Use:   "version",
			Short: "打印版本",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "spanproj %s\n", version)
			},
		},
	)
	return root
}
