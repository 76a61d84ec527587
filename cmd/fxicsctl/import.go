package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxicsd/internal/dispatch"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upload a message or folder change into an open sync session",
	}

	cmd.AddCommand(newImportMessageCmd())
	cmd.AddCommand(newImportFolderCmd())

	return cmd
}

func newImportMessageCmd() *cobra.Command {
	var (
		addr       string
		handle     uint64
		sourceKey  string
		associated bool
		strProps   []string
		intProps   []string
	)

	cmd := &cobra.Command{
		Use:   "message",
		Short: "Upload a message change (spec.md §6 0x72)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sk, err := parseHexKey(sourceKey)
			if err != nil {
				return fmt.Errorf("parsing --source-key: %w", err)
			}

			props, err := parseProps(strProps, intProps)
			if err != nil {
				return err
			}

			c, err := dial(cmd.Context(), addr)
			if err != nil {
				return err
			}
			defer c.Close()

			messageID, err := c.ImportMessageChange(cmd.Context(), dispatch.Handle(handle), sk, associated, props)
			if err != nil {
				return fmt.Errorf("importing message change: %w", err)
			}

			fmt.Println(messageID)

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to the resolved config)")
	cmd.Flags().Uint64Var(&handle, "handle", 0, "sync session handle from configure")
	cmd.Flags().StringVar(&sourceKey, "source-key", "", "hex-encoded source key")
	cmd.Flags().BoolVar(&associated, "associated", false, "the message is folder-associated information")
	cmd.Flags().StringArrayVar(&strProps, "str-prop", nil, "string property as tag=value (tag in hex)")
	cmd.Flags().StringArrayVar(&intProps, "int-prop", nil, "integer property as tag=value (tag in hex)")

	return cmd
}

func newImportFolderCmd() *cobra.Command {
	var (
		addr      string
		handle    uint64
		parentKey string
		folderKey string
		strProps  []string
		intProps  []string
	)

	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Upload a folder change (spec.md §6 0x73)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pk, err := parseHexKey(parentKey)
			if err != nil {
				return fmt.Errorf("parsing --parent-key: %w", err)
			}

			fk, err := parseHexKey(folderKey)
			if err != nil {
				return fmt.Errorf("parsing --folder-key: %w", err)
			}

			props, err := parseProps(strProps, intProps)
			if err != nil {
				return err
			}

			c, err := dial(cmd.Context(), addr)
			if err != nil {
				return err
			}
			defer c.Close()

			messageID, err := c.ImportHierarchyChange(cmd.Context(), dispatch.Handle(handle), pk, fk, props)
			if err != nil {
				return fmt.Errorf("importing hierarchy change: %w", err)
			}

			fmt.Println(messageID)

			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to the resolved config)")
	cmd.Flags().Uint64Var(&handle, "handle", 0, "sync session handle from configure")
	cmd.Flags().StringVar(&parentKey, "parent-key", "", "hex-encoded parent folder source key")
	cmd.Flags().StringVar(&folderKey, "folder-key", "", "hex-encoded folder source key")
	cmd.Flags().StringArrayVar(&strProps, "str-prop", nil, "string property as tag=value (tag in hex)")
	cmd.Flags().StringArrayVar(&intProps, "int-prop", nil, "integer property as tag=value (tag in hex)")

	return cmd
}

// parseProps turns --str-prop/--int-prop tag=value pairs into PropValues,
// tagged PT_STRING8 and PT_I8 respectively — enough to exercise the RPC
// surface by hand without a full MAPI property grammar.
func parseProps(strProps, intProps []string) ([]store.PropValue, error) {
	props := make([]store.PropValue, 0, len(strProps)+len(intProps))

	for _, kv := range strProps {
		tag, value, err := splitPropKV(kv)
		if err != nil {
			return nil, err
		}

		props = append(props, store.PropValue{Tag: tag, Value: propstream.String8Value(value)})
	}

	for _, kv := range intProps {
		tag, value, err := splitPropKV(kv)
		if err != nil {
			return nil, err
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing int property value %q: %w", value, err)
		}

		props = append(props, store.PropValue{Tag: tag, Value: propstream.I8Value(n)})
	}

	return props, nil
}

func splitPropKV(kv string) (propstream.PropTag, string, error) {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("property %q must be tag=value", kv)
	}

	tagStr := strings.TrimPrefix(parts[0], "0x")

	tag, err := strconv.ParseUint(tagStr, 16, 32)
	if err != nil {
		return 0, "", fmt.Errorf("parsing property tag %q: %w", parts[0], err)
	}

	return propstream.PropTag(tag), parts[1], nil
}
