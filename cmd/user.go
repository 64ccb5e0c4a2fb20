package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nsxzhou1114/blog-comment/pkg/auth"
)

// userCmd 用户管理命令
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "用户管理命令",
	Long:  `用户管理相关的命令，包括创建用户、设置管理员与签发令牌`,
}

var (
	userAdmin   bool
	userHTMLURL string
)

// createUserCmd 创建用户命令
var createUserCmd = &cobra.Command{
	Use:   "create [login]",
	Short: "创建用户",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		u, err := a.users.Create(context.Background(), args[0], userHTMLURL, userAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "用户已创建: %s (ID: %d, 管理员: %t)\n", u.Login, u.ID, u.Admin)
		return nil
	},
}

// listUsersCmd 列出用户命令
var listUsersCmd = &cobra.Command{
	Use:   "list",
	Short: "列出用户",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		users, err := a.users.List(context.Background())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t登录名\t管理员\t主页")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", u.ID, u.Login, u.Admin, u.HTMLURL)
		}
		return w.Flush()
	},
}

// setAdminCmd 设置管理员命令
var setAdminCmd = &cobra.Command{
	Use:   "set-admin [login] [true|false]",
	Short: "设置或取消管理员",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("无效的管理员标记: %s", args[1])
		}
		a := mustInit()
		defer a.close()

		ctx := context.Background()
		u, err := a.users.GetByLogin(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.users.SetAdmin(ctx, u.ID, admin); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "用户 %s 管理员: %t\n", u.Login, admin)
		return nil
	},
}

// tokenCmd 签发令牌命令
var tokenCmd = &cobra.Command{
	Use:   "token [login]",
	Short: "为用户签发访问令牌",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustInit()
		defer a.close()

		u, err := a.users.GetByLogin(context.Background(), args[0])
		if err != nil {
			return err
		}
		token, expires, err := a.signer.Issue(u.ID, auth.RoleFor(u.Admin))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(os.Stderr, "过期时间: %s\n", expires.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	createUserCmd.Flags().BoolVar(&userAdmin, "admin", false, "创建为管理员")
	createUserCmd.Flags().StringVar(&userHTMLURL, "html-url", "", "用户主页地址")

	userCmd.AddCommand(createUserCmd)
	userCmd.AddCommand(listUsersCmd)
	userCmd.AddCommand(setAdminCmd)
	userCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(userCmd)
}
