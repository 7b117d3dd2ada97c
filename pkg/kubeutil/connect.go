package kubeutil

import (
	"log"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// detect *kubernetes.Clientset.
//
// *CAUTION*: If no configs are found & the process is not running in
// cluster, IT WILL CAUSE PANIC.
//
// It searches kubeconfig from
//
// - `~/.kube/config`
//
// - environmental variable `KUBECONFIG`
//
// - the explicit path passed as argument (highest priority)
//
// When no files are found from above, it tries to use in-cluster config.
func ConnectToK8s(explicitKubeconfig string) *kubernetes.Clientset {

	kubeconfig := ""

	// priority 1 (least): ~/.kube/config
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	// priority 2: envvar KUBECONFIG
	if k := os.Getenv("KUBECONFIG"); k != "" {
		kubeconfig = k
	}

	// priority 3 (most): explicit path
	if explicitKubeconfig != "" {
		kubeconfig = explicitKubeconfig
	}

	if kubeconfig != "" {
		stat, err := os.Stat(kubeconfig)
		if os.IsNotExist(err) || (err == nil && stat.IsDir()) {
			kubeconfig = ""
		}
	}

	var config *rest.Config
	var err error
	if kubeconfig == "" {
		// fallback: try in-cluster
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}

	if err != nil {
		log.Fatalln(err) // PANIC!
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		log.Fatalln(err) // PANIC!
	}
	return clientset
}
