/*
Copyright © 2018 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package ppgridutil

import (
	"context"
	"fmt"

	"github.com/metno/ppgrid/cloud"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

func newCloudClient(cfg *Cfg) (*cloud.Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("ppgridutil: loading in-cluster Kubernetes configuration: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("ppgridutil: initializing Kubernetes client: %w", err)
	}
	c := cloud.NewClient(clientset)
	if image := cfg.GetString("image"); image != "" {
		c.Image = image
	}
	return c, nil
}

func cloudStart(cfg *Cfg, args []string) error {
	c, err := newCloudClient(cfg)
	if err != nil {
		return err
	}
	js := &cloud.JobSpec{
		Name:     cfg.GetString("job-name"),
		Args:     args,
		MemoryGB: 4,
	}
	status, err := c.RunJob(context.Background(), js)
	if err != nil {
		return err
	}
	fmt.Printf("job '%s': %s\n", js.Name, status.Status)
	return nil
}

func cloudStatus(cfg *Cfg) error {
	c, err := newCloudClient(cfg)
	if err != nil {
		return err
	}
	status, err := c.Status(context.Background(), cfg.GetString("job-name"))
	if err != nil {
		return err
	}
	fmt.Printf("job '%s': %s", cfg.GetString("job-name"), status.Status)
	if status.Message != "" {
		fmt.Printf(" (%s)", status.Message)
	}
	fmt.Println()
	return nil
}

func cloudDelete(cfg *Cfg) error {
	c, err := newCloudClient(cfg)
	if err != nil {
		return err
	}
	return c.Delete(context.Background(), cfg.GetString("job-name"))
}

func cloudLogs(cfg *Cfg) error {
	c, err := newCloudClient(cfg)
	if err != nil {
		return err
	}
	logs, err := c.Logs(context.Background(), cfg.GetString("job-name"))
	if err != nil {
		return err
	}
	fmt.Print(logs)
	return nil
}
