package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nsxzhou1114/blog-comment/internal/service"
)

// dbCmd 数据维护命令
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "数据维护命令",
	Long:  `数据表初始化、评论数重算、过滤器预热与修订查询`,
}

// initTablesCmd 初始化数据表
var initTablesCmd = &cobra.Command{
	Use:   "init-tables",
	Short: "初始化数据表",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()
		fmt.Fprintln(cmd.OutOrStdout(), "数据表已初始化")
		return nil
	},
}

// recountCmd 重算评论数
var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "按数据库重算全部文章的评论数缓存",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		n, err := a.comments.Recount(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已重算 %d 篇文章的评论数\n", n)
		return nil
	},
}

// warmBloomCmd 预热文章过滤器
var warmBloomCmd = &cobra.Command{
	Use:   "warm-bloom",
	Short: "用全部文章ID重建存在性过滤器",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		n, err := a.articles.WarmUp(context.Background(), a.cache)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已写入 %d 个文章ID\n", n)
		return nil
	},
}

// historyCmd 查看评论修订
var historyCmd = &cobra.Command{
	Use:   "history [comment-id]",
	Short: "查看评论的全部修订",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的评论ID: %s", args[0])
		}
		a := mustInit()
		defer a.close()

		revs, err := a.comments.History(context.Background(), service.Actor{Admin: true}, id)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "修订ID\t时间\t内容")
		for _, r := range revs {
			fmt.Fprintf(w, "%d\t%s\t%q\n", r.ID, r.EditDate.Format("2006-01-02 15:04:05"), r.Content)
		}
		return w.Flush()
	},
}

func init() {
	dbCmd.AddCommand(initTablesCmd)
	dbCmd.AddCommand(recountCmd)
	dbCmd.AddCommand(warmBloomCmd)
	dbCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dbCmd)
}
