package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

var (
	// 这些变量在编译时通过 -ldflags 设置
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
	Platform  = runtime.GOOS + "/" + runtime.GOARCH
)

// versionCmd 版本信息命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	return fmt.Sprintf("博客评论服务\n版本: %s\nGit提交: %s\n构建时间: %s\nGo版本: %s\n平台: %s\n当前时间: %s\n",
		Version, GitCommit, BuildTime, GoVersion, Platform, time.Now().Format("2006-01-02 15:04:05"))
}
