package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evregistry/client/evctl/internal/api"
)

type stationFlags struct {
	name      string
	lat       float64
	lng       float64
	power     float64
	slots     int
	connector string
	status    string
}

func (f *stationFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "", "station name")
	fs.Float64Var(&f.lat, "lat", 0, "latitude, -90..90")
	fs.Float64Var(&f.lng, "lng", 0, "longitude, -180..180")
	fs.Float64Var(&f.power, "power", 0, "power output in kW")
	fs.IntVar(&f.slots, "slots", 0, "number of charging slots")
	fs.StringVar(&f.connector, "connector", "", "connector type (Type 1, Type 2, CCS, CHAdeMO, Tesla)")
	fs.StringVar(&f.status, "status", "", "Active or Inactive")
}

// payload includes only flags the user set.
func (f *stationFlags) payload(cmd *cobra.Command) (api.StationPayload, error) {
	fs := cmd.Flags()
	var p api.StationPayload
	if fs.Changed("name") {
		p.Name = &f.name
	}
	latSet, lngSet := fs.Changed("lat"), fs.Changed("lng")
	if latSet != lngSet {
		return p, fmt.Errorf("--lat and --lng must be given together")
	}
	if latSet {
		p.Location = &api.Location{Latitude: f.lat, Longitude: f.lng}
	}
	if fs.Changed("power") {
		p.PowerOutput = &f.power
	}
	if fs.Changed("slots") {
		p.Slots = &f.slots
	}
	if fs.Changed("connector") {
		p.ConnectorType = &f.connector
	}
	if fs.Changed("status") {
		p.Status = &f.status
	}
	return p, nil
}

func newStationsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "stations",
		Aliases: []string{"st"},
		Short:   "Query and manage charging stations",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	show := func(w io.Writer, stations ...api.Station) error {
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if len(stations) == 1 {
				return enc.Encode(stations[0])
			}
			return enc.Encode(stations)
		}
		return printStations(w, stations)
	}

	cmd.AddCommand(
		newStationsListCmd(a, show),
		newStationsGetCmd(a, show),
		newStationsCreateCmd(a, show),
		newStationsUpdateCmd(a, show),
		newStationsDeleteCmd(a),
		newStationsWatchCmd(a),
	)
	return cmd
}

type printFunc func(io.Writer, ...api.Station) error

func newStationsListCmd(a *app, show printFunc) *cobra.Command {
	var status, connector string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stations, err := a.client.ListStations(cmd.Context(), status, connector)
			if err != nil {
				return err
			}
			return show(cmd.OutOrStdout(), stations...)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&connector, "connector", "", "filter by connector type")
	return cmd
}

func newStationsGetCmd(a *app, show printFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client.GetStation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return show(cmd.OutOrStdout(), *st)
		},
	}
}

func newStationsCreateCmd(a *app, show printFunc) *cobra.Command {
	var (
		f     stationFlags
		force bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAdmin(force); err != nil {
				return err
			}
			p, err := f.payload(cmd)
			if err != nil {
				return err
			}
			st, err := a.client.CreateStation(cmd.Context(), p)
			if err != nil {
				return err
			}
			return show(cmd.OutOrStdout(), *st)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "send even when the session is not an admin")
	return cmd
}

func newStationsUpdateCmd(a *app, show printFunc) *cobra.Command {
	var (
		f     stationFlags
		force bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a station; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAdmin(force); err != nil {
				return err
			}
			p, err := f.payload(cmd)
			if err != nil {
				return err
			}
			// The server requires a location on every update.
			if p.Location == nil {
				cur, err := a.client.GetStation(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				p.Location = &cur.Location
			}
			st, err := a.client.UpdateStation(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return show(cmd.OutOrStdout(), *st)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "send even when the session is not an admin")
	return cmd
}

func newStationsDeleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAdmin(force); err != nil {
				return err
			}
			if err := a.client.DeleteStation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "send even when the session is not an admin")
	return cmd
}

func newStationsWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow station changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return a.client.Watch(cmd.Context(), func(e api.Event) {
				name := ""
				if e.Station != nil {
					name = e.Station.Name
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", e.At.Local().Format("15:04:05"), e.Type, e.StationID, name)
			})
		},
	}
}

func printStations(w io.Writer, stations []api.Station) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLAT\tLNG\tPOWER\tSLOTS\tCONNECTOR\tSTATUS")
	for _, s := range stations {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\t%d\t%s\t%s\n",
			s.ID, s.Name, s.Location.Latitude, s.Location.Longitude, s.PowerOutput, s.Slots, s.ConnectorType, s.Status)
	}
	return tw.Flush()
}
