package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "spanproj/internal/config"
)

func newInitConfigCmd(stdout io.Writer) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "生成默认配置与 .env 模板（已存在则跳过，不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return configErr("生成默认配置失败: %w", err)
			}
			var name string
			switch format {
			case "json":
				name = "config.json"
			case "yaml", "yml":
				name = "config.yaml"
			default:
				return configErr("未知格式 %q（json|yaml）", format)
			}
			path := filepath.Join(dir, name)
			if err := writeConfig(path, cfgpkg.DefaultTemplateConfig()); err != nil {
				if os.IsExist(err) {
					fmt.Fprintf(stdout, "已存在，跳过: %s\n", path)
					return nil
				}
				return configErr("生成默认配置失败: %w", err)
			}
			if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "提示：.env 生成失败（已跳过）：%v\n", err)
			}
			fmt.Fprintf(stdout, "已生成 %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "配置格式：json|yaml")
	return cmd
}

// renderConfig 按扩展名渲染；YAML 由 JSON 形态转换，保持与解析端相同的键名。
func renderConfig(path string, c cfgpkg.Config) ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, err
		}
		return yaml.Marshal(doc)
	default:
		return append(b, '\n'), nil
	}
}

// writeConfig 写出配置；"-" 写到 STDOUT；不覆盖已存在文件。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := renderConfig(path, c)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}
