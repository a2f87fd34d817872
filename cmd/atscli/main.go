// atscli 在本地对简历文件评分，不依赖任何外部存储
package main

import (
	"fmt"
	"os"

	"ats-optimizer/internal/logger"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	resumeFile = pflag.StringP("resume", "r", "", "简历文件路径 (pdf/docx/txt, 必填)")
	jobFile    = pflag.StringP("job", "j", "", "岗位描述文本文件路径")
	jobText    = pflag.String("job-text", "", "岗位描述文本，优先于 --job")
	taxonomy   = pflag.String("taxonomy", "", "技能分类YAML文件，空则使用内置分类表")
	tikaURL    = pflag.String("tika", "", "Tika服务器地址，解析 .doc 时需要")
	maxLen     = pflag.Int("maxlen", 1000, "显示的文本最大长度，设为-1显示全部")
	output     = pflag.StringP("output", "o", "", "输出文件: extract 保存文本, score 保存JSON, optimize 保存DOCX")
	command    = pflag.StringP("cmd", "c", "score", "执行的命令: extract=仅提取文本, score=评分, optimize=评分并生成优化简历")
	verbose    = pflag.BoolP("verbose", "v", false, "输出调试日志")
)

func main() {
	pflag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger.InitWithWriter(logger.Config{Level: level, Format: "pretty", TimeFormat: "15:04:05"}, os.Stderr)

	if *resumeFile == "" {
		fmt.Println("错误: 必须提供简历文件路径。使用 --resume 参数。")
		pflag.Usage()
		os.Exit(1)
	}

	var err error
	switch *command {
	case "extract":
		err = runExtract()
	case "score":
		err = runScore(false)
	case "optimize":
		err = runScore(true)
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: extract, score, optimize\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
