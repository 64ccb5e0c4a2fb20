package cmd

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nsxzhou1114/blog-comment/internal/database"
	"github.com/nsxzhou1114/blog-comment/internal/service"
)

// statsCmd 统计命令
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "统计信息命令",
	Long:  `显示文章评论数、用户与存储状态`,
}

// commentStatsCmd 评论统计
var commentStatsCmd = &cobra.Command{
	Use:   "comments",
	Short: "每篇文章的评论数",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		ctx := context.Background()
		articles, err := a.articles.List(ctx, service.Actor{Admin: true})
		if err != nil {
			return err
		}
		counts, err := a.store.Comments.CountAll(ctx)
		if err != nil {
			return err
		}
		sort.SliceStable(articles, func(i, j int) bool {
			return counts[articles[i].ID] > counts[articles[j].ID]
		})

		var total int64
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "文章ID\t标题\t公开\t锁定\t评论数")
		for _, art := range articles {
			n := counts[art.ID]
			total += n
			fmt.Fprintf(w, "%d\t%s\t%t\t%t\t%d\n", art.ID, art.Content.Title, art.Content.Public, art.Content.CommentsLocked, n)
		}
		fmt.Fprintf(w, "合计\t\t\t\t%d\n", total)
		return w.Flush()
	},
}

// userStatsCmd 用户统计
var userStatsCmd = &cobra.Command{
	Use:   "users",
	Short: "用户统计信息",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		users, err := a.users.List(context.Background())
		if err != nil {
			return err
		}
		admins := 0
		for _, u := range users {
			if u.Admin {
				admins++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "用户总数: %d\n管理员: %d\n", len(users), admins)
		return nil
	},
}

// dbStatusCmd 存储状态
var dbStatusCmd = &cobra.Command{
	Use:   "db-status",
	Short: "数据库与redis连接状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		out := cmd.OutOrStdout()
		sqlDB, err := database.GetDB().DB()
		if err != nil {
			return err
		}
		st := sqlDB.Stats()
		fmt.Fprintf(out, "数据库驱动: %s\n", a.cfg.Database.Driver)
		fmt.Fprintf(out, "打开连接: %d (使用中 %d, 空闲 %d)\n", st.OpenConnections, st.InUse, st.Idle)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		start := time.Now()
		if err := database.GetRedis().Ping(ctx).Err(); err != nil {
			fmt.Fprintf(out, "redis: 不可用 (%v)\n", err)
			return nil
		}
		fmt.Fprintf(out, "redis: 正常 (%s)\n", time.Since(start).Round(time.Microsecond))
		return nil
	},
}

func init() {
	statsCmd.AddCommand(commentStatsCmd)
	statsCmd.AddCommand(userStatsCmd)
	statsCmd.AddCommand(dbStatusCmd)
	rootCmd.AddCommand(statsCmd)
}
