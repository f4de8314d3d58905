package main

import (
	"fmt"
	"os"
)

const usage = `用法: resumeprocessor <command> [flags]

命令:
  extract   解析简历文件并提取姓名、邮箱、电话
  score     按评分规则给单个答案打分
  draw      按难度抽取一套面试题

使用 resumeprocessor <command> -h 查看各命令参数`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "extract":
		err = runExtract(os.Args[2:])
	case "score":
		err = runScore(os.Args[2:])
	case "draw":
		err = runDraw(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Printf("错误: 未知命令 '%s'\n\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
