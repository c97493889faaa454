package main

import (
	"bufio"
	"os"
	"strings"
)

// loadDotEnv 读取简单的 .env 文件并注入进程环境：
// - 忽略不存在的文件；
// - 跳过空行与 # 注释；支持可选的 "export " 前缀；
// - 成对引号被剥离，双引号内处理 \n \t \" \\；
// - 不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" {
			continue
		}
		val = unquote(val)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	q := val[0]
	if (q != '\'' && q != '"') || val[len(val)-1] != q {
		return val
	}
	val = val[1 : len(val)-1]
	if q == '"' {
		val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`).Replace(val)
	}
	return val
}

// dotEnvKeys: .env 模板列出的覆盖项。
var dotEnvKeys = []struct{ section, key string }{
	{"配置来源（二选一）", "SPANPROJ_CONFIG_FILE"},
	{"", "SPANPROJ_CONFIG_JSON"},
	{"运行参数", "SPANPROJ_BATCH_SIZE"},
	{"", "SPANPROJ_CONCURRENCY"},
	{"", "SPANPROJ_OUTPUT_DIR"},
	{"", "SPANPROJ_MANIFEST"},
	{"", "SPANPROJ_METRICS_FILE"},
	{"", "SPANPROJ_LOG_LEVEL"},
	{"", "SPANPROJ_LOG_DIR"},
	{"投影", "SPANPROJ_REMOVE_PUNCT"},
	{"", "SPANPROJ_FILL_GAP_SIZE"},
	{"", "SPANPROJ_PUNCT_FOLD"},
	{"组件选择", "SPANPROJ_COMPONENTS_READER"},
	{"", "SPANPROJ_COMPONENTS_SOURCE_SPLITTER"},
	{"", "SPANPROJ_COMPONENTS_TARGET_SPLITTER"},
	{"", "SPANPROJ_COMPONENTS_DECODER"},
	{"", "SPANPROJ_COMPONENTS_BATCHER"},
	{"", "SPANPROJ_COMPONENTS_PROJECTOR"},
	{"", "SPANPROJ_COMPONENTS_ASSEMBLER"},
	{"", "SPANPROJ_COMPONENTS_WRITER"},
}

// writeDotEnv 生成 .env 模板；文件已存在时跳过。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# spanproj .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件；空值表示未设置。\n")
	for _, k := range dotEnvKeys {
		if k.section != "" {
			b.WriteString("\n# " + k.section + "\n")
		}
		b.WriteString(k.key + "=\n")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
