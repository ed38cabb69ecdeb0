package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/surrealdb/blocktree"
	"github.com/surrealdb/blocktree/pkg/models"
)

// action runs one session action on the loaded page and prints the outcome.
type action func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error)

func runAction(flags *globalFlags, fn action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		session, err := flags.open(cmd.Context())
		if err != nil {
			return err
		}
		res, err := fn(cmd, session, args)
		if res.Action != "" {
			printResult(cmd.OutOrStdout(), res)
		}
		if err != nil {
			return err
		}
		printTree(cmd.OutOrStdout(), session, flags.page)
		return nil
	}
}

func newTreeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the page's block tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), session, flags.page)
			return nil
		},
	}
}

func newAddCmd(flags *globalFlags) *cobra.Command {
	var parent, after, typ string

	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Create a block; several texts are added as one batch",
		RunE: runAction(flags, func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error) {
			t := models.BlockType(typ)
			if len(args) <= 1 {
				nb := blocktree.NewBlock{ParentID: parent, AfterID: after, Type: t}
				if len(args) == 1 {
					nb.Content = withText(t, args[0])
				}
				return session.CreateBlock(cmd.Context(), flags.page, nb)
			}

			items := make([]blocktree.BatchItem, 0, len(args))
			for _, text := range args {
				items = append(items, blocktree.BatchItem{Type: t, Content: withText(t, text)})
			}
			return session.BatchAddBlocksAfter(cmd.Context(), flags.page, after, items, parent)
		}),
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent block id (default top level)")
	cmd.Flags().StringVar(&after, "after", "", "sibling to insert after (default first)")
	cmd.Flags().StringVarP(&typ, "type", "t", string(models.BlockTypeParagraph), "block type")
	return cmd
}

func withText(t models.BlockType, text string) models.Content {
	return models.ConvertContent(models.Paragraph{Text: text}, t)
}

func newIndentCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "indent <block-id>",
		Short: "Make a block the last child of its previous sibling",
		Args:  cobra.ExactArgs(1),
		RunE: runAction(flags, func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error) {
			return session.Indent(cmd.Context(), flags.page, args[0])
		}),
	}
}

func newOutdentCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "outdent <block-id>",
		Short: "Move a block up one level, after its parent",
		Args:  cobra.ExactArgs(1),
		RunE: runAction(flags, func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error) {
			return session.Outdent(cmd.Context(), flags.page, args[0])
		}),
	}
}

func newMoveCmd(flags *globalFlags) *cobra.Command {
	var to blocktree.MoveTo

	cmd := &cobra.Command{
		Use:   "move <block-id>",
		Short: "Move a block under a parent, after a sibling",
		Args:  cobra.ExactArgs(1),
		RunE: runAction(flags, func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error) {
			return session.MoveBlock(cmd.Context(), flags.page, args[0], to)
		}),
	}
	cmd.Flags().StringVar(&to.ParentID, "parent", "", "new parent block id (default top level)")
	cmd.Flags().StringVar(&to.AfterID, "after", "", "sibling to follow (default first)")
	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <block-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a block; its children take its place",
		Args:    cobra.ExactArgs(1),
		RunE: runAction(flags, func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error) {
			return session.DeleteBlock(cmd.Context(), flags.page, args[0])
		}),
	}
}

func newUpdateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update <block-id> <json>",
		Short: "Patch a block's type, content, props, layout or width",
		Example: `  blockctl -p p1 update b1 '{"content": {"text": "hello"}}'
  blockctl -p p1 update b1 '{"type": "todo", "content": {"text": "call", "checked": true}}'`,
		Args: cobra.ExactArgs(2),
		RunE: runAction(flags, func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error) {
			var fields map[string]any
			if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
				return blocktree.Result{}, fmt.Errorf("invalid patch: %w", err)
			}
			return session.UpdateFields(cmd.Context(), args[0], fields)
		}),
	}
}

func newDuplicateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <block-id>",
		Short: "Copy a block and its descendants after the original",
		Args:  cobra.ExactArgs(1),
		RunE: runAction(flags, func(cmd *cobra.Command, session *blocktree.Session, args []string) (blocktree.Result, error) {
			return session.DuplicateSubtree(cmd.Context(), flags.page, args[0])
		}),
	}
}

func newListenCmd(flags *globalFlags) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Follow the live feed and reprint the page when it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), session, flags.page)
			return session.Listen(cmd.Context(), url, func(pageID string) {
				if pageID == flags.page {
					fmt.Fprintln(cmd.OutOrStdout())
					printTree(cmd.OutOrStdout(), session, pageID)
				}
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "websocket feed URL (default live_url from the config)")
	return cmd
}
