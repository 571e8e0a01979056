package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dukerupert/zooz/internal/backup"
)

func newSnapshotCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Take, list or fetch encrypted database snapshots",
		Long: `Snapshots need ZOOZ_S3_BUCKET, the ZOOZ_S3_* credentials and
ZOOZ_SNAPSHOT_PASSPHRASE in the environment or a .env file.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Upload a snapshot now",
		RunE: withSnapshotter(root, func(cmd *cobra.Command, a *app, s *backup.Snapshotter, args []string) error {
			snap, err := s.Run(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.emit(snap, func(w io.Writer) {
				row(w, "uploaded", snap.Key, snap.Size)
			})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List uploaded snapshots, newest first",
		RunE: withSnapshotter(root, func(cmd *cobra.Command, a *app, s *backup.Snapshotter, args []string) error {
			snaps, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.emit(snaps, func(w io.Writer) {
				row(w, "KEY", "SIZE", "CREATED")
				for _, sn := range snaps {
					row(w, sn.Key, sn.Size, sn.CreatedAt.Format("2006-01-02 15:04"))
				}
			})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "fetch <key> <dest.db>",
		Short: "Download and decrypt a snapshot to a new file",
		Args:  cobra.ExactArgs(2),
		RunE: withSnapshotter(root, func(cmd *cobra.Command, a *app, s *backup.Snapshotter, args []string) error {
			if err := s.Fetch(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.out.emit(map[string]string{"key": args[0], "path": args[1]}, func(w io.Writer) {
				row(w, "restored", args[0], "to", args[1])
			})
		}),
	})
	return cmd
}

func withSnapshotter(root *RootOptions, run func(*cobra.Command, *app, *backup.Snapshotter, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := root.open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s := backup.New(a.db, a.cfg.S3, a.cfg.SnapshotKey, a.logger)
		if s == nil {
			return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("snapshots are not configured: set ZOOZ_S3_BUCKET")}
		}
		return run(cmd, a, s, args)
	}
}
